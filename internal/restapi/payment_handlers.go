package restapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront.kajin.shop/internal/models"
	"storefront.kajin.shop/internal/pay"
	"storefront.kajin.shop/internal/utils"
	"storefront.kajin.shop/shopdb"
)

const notifyBodyLimit = 1 << 20

func (api *RestAPI) paymentPrepayHandler(w http.ResponseWriter, r *http.Request) {
	if api.payments == nil {
		api.sendBusinessError(w, "payments are not configured")
		return
	}

	user, ok := currentUser(r)
	if !ok {
		api.sendUnauthorized(w)
		return
	}

	orderID := utils.QueryInt64(r, "orderId", 0)
	if utils.ValidatePositiveID(orderID) != nil {
		api.validationErrorResponse(w, models.FieldErrors{"orderId": {"must be a positive integer"}})
		return
	}

	order, err := api.Store.Queries.GetOrder(r.Context(), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		api.sendBusinessError(w, "order not found")
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if order.UserID != user.ID {
		api.sendBusinessError(w, "order not found")
		return
	}
	if order.Status != shopdb.OrderStatusPending {
		api.sendBusinessError(w, "order is not awaiting payment")
		return
	}
	if order.ExpireTime.Valid && order.ExpireTime.Int64 <= time.Now().Unix() {
		api.sendBusinessError(w, "order expired, please place it again")
		return
	}

	openID, err := api.wechatOpenID(r, user.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if openID == "" {
		api.sendBusinessError(w, "account has no linked wechat identity")
		return
	}

	items, err := api.Store.Queries.ListOrderItems(r.Context(), order.ID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	prepayID, err := api.payments.CreatePrepay(r.Context(), prepayRequestFor(order, items, openID))
	if err != nil {
		api.Logger.Error("creating prepay session", "error", err, "order_id", order.ID)
		api.sendBusinessError(w, "failed to open payment session")
		return
	}

	params, err := api.payments.SignPrepay(prepayID)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendSuccess(w, params)
}

func (api *RestAPI) wechatOpenID(r *http.Request, userID int64) (string, error) {
	auths, err := api.Store.Queries.ListUserAuths(r.Context(), userID)
	if err != nil {
		return "", err
	}
	for _, auth := range auths {
		if auth.AuthType == shopdb.AuthTypeWechatMiniProgram && auth.OpenID.Valid {
			return auth.OpenID.String, nil
		}
	}
	return "", nil
}

func prepayRequestFor(order shopdb.Order, items []shopdb.OrderItem, openID string) pay.PrepayRequest {
	var desc strings.Builder
	for _, item := range items {
		piece := item.ProductName
		if item.SkuName.Valid {
			piece += "-" + item.SkuName.String
		}
		piece += ";"
		if desc.Len()+len(piece) > 127 {
			break
		}
		desc.WriteString(piece)
	}
	description := desc.String()
	if description == "" {
		description = "product order"
	}

	req := pay.PrepayRequest{
		Description:     description,
		MerchantOrderNo: order.MerchantOrderNo.String,
		AmountCents:     order.TotalAmountCents,
		OpenID:          openID,
		Attach:          fmt.Sprintf("order_id:%d", order.ID),
	}
	if order.ExpireTime.Valid {
		req.ExpireAt = time.Unix(order.ExpireTime.Int64, 0)
	}
	return req
}

// paymentNotifyHandler processes provider callbacks. Non-2xx answers make the
// provider retry, so transient failures return 500 and anything final acks
// with 200.
func (api *RestAPI) paymentNotifyHandler(w http.ResponseWriter, r *http.Request) {
	if api.payments == nil {
		http.Error(w, "payments not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, notifyBodyLimit))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	if err := api.payments.VerifyCallback(
		r.Header.Get("Wechatpay-Timestamp"),
		r.Header.Get("Wechatpay-Nonce"),
		string(body),
		r.Header.Get("Wechatpay-Signature"),
	); err != nil {
		api.Logger.Error("callback signature rejected", "error", err,
			"serial", r.Header.Get("Wechatpay-Serial"))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var envelope pay.NotifyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	txn, err := api.payments.DecryptResource(envelope)
	if err != nil {
		api.Logger.Error("decrypting callback resource", "error", err, "notify_id", envelope.ID)
		http.Error(w, "decrypt failed", http.StatusBadRequest)
		return
	}

	switch envelope.EventType {
	case pay.EventTransactionSuccess:
		err = api.handlePaymentSuccess(r, txn, body)
	case pay.EventTransactionClosed:
		api.Logger.Info("provider closed transaction",
			"merchant_order_no", txn.OutTradeNo, "transaction_id", txn.TransactionID)
	default:
		api.Logger.Warn("unhandled callback event type",
			"event_type", envelope.EventType, "merchant_order_no", txn.OutTradeNo)
	}
	if err != nil {
		api.Logger.Error("processing payment callback", "error", err,
			"merchant_order_no", txn.OutTradeNo, "transaction_id", txn.TransactionID)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("SUCCESS"))
}

// handlePaymentSuccess marks the order paid, records the payment and fulfills
// the items, all in one transaction. The conditional pending-to-paid
// transition makes a replayed callback a no-op.
func (api *RestAPI) handlePaymentSuccess(r *http.Request, txn pay.Transaction, rawBody []byte) error {
	if txn.OutTradeNo == "" || txn.TransactionID == "" {
		return fmt.Errorf("callback missing out_trade_no or transaction_id")
	}

	ctx := r.Context()
	return api.Store.WithTx(func(q *shopdb.Queries) error {
		order, err := q.GetOrderByMerchantOrderNo(ctx, txn.OutTradeNo)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("callback for unknown order %s", txn.OutTradeNo)
		}
		if err != nil {
			return err
		}

		paid, err := q.TransitionOrderStatus(ctx, order.ID, shopdb.OrderStatusPending, shopdb.OrderStatusPaid)
		if err != nil {
			return err
		}
		if !paid {
			if order.Status == shopdb.OrderStatusPaid {
				api.Logger.Info("duplicate payment callback acknowledged",
					"order_id", order.ID, "transaction_id", txn.TransactionID)
				return nil
			}
			return fmt.Errorf("order %d is %s, cannot mark paid", order.ID, order.Status)
		}

		if _, err := q.CreatePayment(ctx, shopdb.CreatePaymentParams{
			OrderID:         order.ID,
			MerchantOrderNo: txn.OutTradeNo,
			TransactionID:   sql.NullString{String: txn.TransactionID, Valid: true},
			TradeState:      txn.TradeState,
			AmountCents:     txn.Amount.PayerTotal,
			PayerOpenID:     sql.NullString{String: txn.Payer.OpenID, Valid: txn.Payer.OpenID != ""},
			RawNotify:       sql.NullString{String: string(rawBody), Valid: true},
		}); err != nil {
			return err
		}

		if err := api.fulfiller.Fulfill(ctx, q, order); err != nil {
			return err
		}

		api.Logger.Info("order paid",
			"order_id", order.ID, "merchant_order_no", txn.OutTradeNo,
			"transaction_id", txn.TransactionID, "amount_cents", txn.Amount.PayerTotal)
		return nil
	})
}
