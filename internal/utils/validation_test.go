package utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid simple", "admin", false},
		{"valid with separators", "shop_admin-01.cn", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"spaces", "shop admin", true},
		{"injection characters", "admin'; DROP TABLE users--", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 129)))
	assert.NoError(t, ValidatePassword("longenough"))
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery(""))
	assert.NoError(t, ValidateQuery("walnut board"))
	assert.Error(t, ValidateQuery("<script>alert(1)</script>"))
	assert.Error(t, ValidateQuery(strings.Repeat("q", 201)))
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantNumber int64
		wantSize   int64
	}{
		{"defaults", "", 1, 20},
		{"explicit", "page=3&pageSize=50", 3, 50},
		{"clamped size", "pageSize=1000", 1, 100},
		{"negative page", "page=-1", 1, 20},
		{"garbage", "page=abc&pageSize=xyz", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/products?"+tt.query, nil)
			page := ParsePage(r)
			assert.Equal(t, tt.wantNumber, page.Number)
			assert.Equal(t, tt.wantSize, page.Size)
		})
	}
}

func TestPageOffsetAndHasNext(t *testing.T) {
	page := Page{Number: 2, Size: 20}
	assert.EqualValues(t, 20, page.Offset())
	assert.True(t, page.HasNext(41))
	assert.False(t, page.HasNext(40))
}
