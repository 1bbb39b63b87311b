package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"milltownabc/internal/logger"
	"milltownabc/internal/metrics"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

const (
	sandboxKeyPrefix = "SB-"

	// Midtrans settles in rupiah only and gross_amount is whole rupiah.
	settlementCurrency = "IDR"
	minorPerMajor      = 100
)

var ErrNotConfigured = errors.New(MsgNotConfigured)

type coreClient interface {
	ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *midtrans.Error)
	CancelTransaction(transactionID string) (*coreapi.CancelResponse, *midtrans.Error)
}

// MidtransGateway charges cards through the Midtrans core API.
type MidtransGateway struct {
	serverKey string
	env       midtrans.EnvironmentType
	timeout   time.Duration
	newClient func(idempotencyKey string) coreClient
}

func NewMidtransGateway(serverKey string, timeout time.Duration) *MidtransGateway {
	g := &MidtransGateway{
		serverKey: serverKey,
		env:       EnvironmentFor(serverKey),
		timeout:   timeout,
	}
	g.newClient = g.buildClient
	return g
}

// EnvironmentFor picks sandbox or production from the shape of the server key.
func EnvironmentFor(serverKey string) midtrans.EnvironmentType {
	if strings.HasPrefix(serverKey, sandboxKeyPrefix) {
		return midtrans.Sandbox
	}
	return midtrans.Production
}

func (g *MidtransGateway) buildClient(idempotencyKey string) coreClient {
	c := &coreapi.Client{}
	c.New(g.serverKey, g.env)
	if c.Options == nil {
		c.Options = &midtrans.ConfigOptions{}
	}
	if idempotencyKey != "" {
		c.Options.SetPaymentIdempotencyKey(idempotencyKey)
	}
	return c
}

func (g *MidtransGateway) Configured() bool {
	return g.serverKey != ""
}

func (g *MidtransGateway) SupportsCurrency(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), settlementCurrency)
}

// grossAmount converts minor units into the whole-rupiah amount the API takes.
func (g *MidtransGateway) grossAmount(req ChargeRequest) (int64, bool) {
	if !g.SupportsCurrency(req.Currency) || req.AmountCents <= 0 || req.AmountCents%minorPerMajor != 0 {
		return 0, false
	}
	return req.AmountCents / minorPerMajor, true
}

type chargeOutcome struct {
	resp *coreapi.ChargeResponse
	err  *midtrans.Error
}

func (g *MidtransGateway) Charge(ctx context.Context, req ChargeRequest) ChargeResult {
	if !g.Configured() {
		metrics.RecordPayment("not_configured", 0)
		return failure(MsgNotConfigured)
	}

	amount, ok := g.grossAmount(req)
	if !ok {
		metrics.RecordPayment("unsupported_currency", 0)
		logger.Warn("Card charge refused before sending", "reference", req.ReferenceID,
			"currency", req.Currency, "amount_minor", req.AmountCents)
		return failure(MsgUnsupported)
	}

	start := time.Now()
	client := g.newClient(req.IdempotencyKey)
	charge := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.ReferenceID,
			GrossAmt: amount,
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: req.Token,
		},
		CustomerDetails: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.ReferenceID,
				Name:  req.Note,
				Price: amount,
				Qty:   1,
			},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan chargeOutcome, 1)
	go func() {
		resp, err := client.ChargeTransaction(charge)
		done <- chargeOutcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		metrics.RecordPayment("timeout", time.Since(start).Seconds())
		logger.Warn("Card charge timed out", "reference", req.ReferenceID, "timeout", g.timeout)
		go g.voidLate(done, req.ReferenceID)
		return failure(MsgTimedOut)
	case out := <-done:
		result := interpret(out)
		status := "success"
		if !result.Success {
			status = "failed"
		}
		metrics.RecordPayment(status, time.Since(start).Seconds())
		if out.err != nil {
			logger.Error("Card charge failed", "reference", req.ReferenceID, "error", out.err.Message)
		}
		return result
	}
}

// voidLate reverses a charge that succeeded after the caller gave up on it.
func (g *MidtransGateway) voidLate(done <-chan chargeOutcome, reference string) {
	out := <-done
	result := interpret(out)
	if !result.Success {
		return
	}

	logger.Warn("Voiding charge that completed after timeout", "reference", reference, "transaction_id", result.TransactionID)
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	if err := g.Void(ctx, result.TransactionID); err != nil {
		logger.Error("Failed to void late charge", "reference", reference, "transaction_id", result.TransactionID, "error", err)
	}
}

func interpret(out chargeOutcome) ChargeResult {
	if out.err != nil {
		msg := MsgGeneric
		if out.resp != nil && out.resp.StatusMessage != "" {
			msg = out.resp.StatusMessage
		}
		return failure(msg)
	}
	if out.resp == nil {
		return failure(MsgGeneric)
	}

	resp := out.resp
	captured := resp.TransactionStatus == "capture" || resp.TransactionStatus == "settlement"
	accepted := resp.FraudStatus == "" || resp.FraudStatus == "accept"
	if !captured || !accepted {
		msg := resp.StatusMessage
		if msg == "" {
			msg = MsgGeneric
		}
		return failure(msg)
	}

	return ChargeResult{
		Success:       true,
		TransactionID: resp.TransactionID,
		ReceiptURL:    resp.RedirectURL,
	}
}

func (g *MidtransGateway) Void(ctx context.Context, transactionID string) error {
	if !g.Configured() {
		return ErrNotConfigured
	}

	client := g.newClient("")
	errCh := make(chan error, 1)
	go func() {
		_, merr := client.CancelTransaction(transactionID)
		if merr != nil {
			errCh <- errors.New(merr.Message)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
