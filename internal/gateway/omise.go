package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"go.uber.org/zap"
)

const eventChargeComplete = "charge.complete"

// Omise creates a source and a charge per intent. The charge id is the
// provider transaction id; AuthorizeURI is where the customer pays.
type Omise struct {
	client    *omise.Client
	returnURI string
	log       *zap.Logger
}

func NewOmise(publicKey, secretKey, returnURI string, log *zap.Logger) (*Omise, error) {
	if publicKey == "" || secretKey == "" {
		return nil, errors.New("omise keys are required")
	}
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("create omise client: %w", err)
	}

	return &Omise{
		client:    c,
		returnURI: returnURI,
		log:       log.With(zap.String("gateway", "omise")),
	}, nil
}

// clientFor returns a copy of the client bound to ctx. WithContext mutates
// the client, so the shared one is never bound.
func (o *Omise) clientFor(ctx context.Context) *omise.Client {
	c := *o.client
	c.WithContext(ctx)
	return &c
}

func (o *Omise) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount <= 0 || req.Currency == "" || req.Method == "" {
		return nil, errors.New("invalid params")
	}
	currency := strings.ToLower(req.Currency)

	client := o.clientFor(ctx)
	src := &omise.Source{}
	if err := client.Do(src, &operations.CreateSource{
		Type:     req.Method,
		Amount:   req.Amount,
		Currency: currency,
	}); err != nil {
		o.log.Error("Failed to create omise source", zap.Error(err), zap.String("booking_id", req.BookingID.String()))
		return nil, fmt.Errorf("create source for booking %s: %w", req.BookingID, err)
	}

	ch := &omise.Charge{}
	if err := client.Do(ch, &operations.CreateCharge{
		Amount:    req.Amount,
		Currency:  currency,
		Source:    src.ID,
		ReturnURI: o.returnURI,
		Metadata:  map[string]interface{}{"booking_id": req.BookingID.String()},
	}); err != nil {
		o.log.Error("Failed to create omise charge", zap.Error(err), zap.String("booking_id", req.BookingID.String()))
		return nil, fmt.Errorf("create charge for booking %s: %w", req.BookingID, err)
	}

	o.log.Info("Omise charge created",
		zap.String("booking_id", req.BookingID.String()),
		zap.String("charge_id", ch.ID),
		zap.String("status", string(ch.Status)),
	)

	return &Intent{ProviderTransactionID: ch.ID, PaymentURL: ch.AuthorizeURI}, nil
}

// ResolveEvent re-fetches a webhook event from Omise instead of trusting the
// posted body. It returns nil for events that carry no final payment outcome.
func (o *Omise) ResolveEvent(ctx context.Context, eventID string) (*Notification, error) {
	ev := &omise.Event{}
	if err := o.clientFor(ctx).Do(ev, &operations.RetrieveEvent{EventID: eventID}); err != nil {
		return nil, fmt.Errorf("retrieve event %s: %w", eventID, err)
	}
	if ev.Key != eventChargeComplete {
		o.log.Debug("Skipping omise event", zap.String("event_id", eventID), zap.String("key", ev.Key))
		return nil, nil
	}

	// ev.Data is decoded generically; round-trip it into a Charge
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event %s data: %w", eventID, err)
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode charge of event %s: %w", eventID, err)
	}

	return notificationFromCharge(&ch), nil
}

func notificationFromCharge(ch *omise.Charge) *Notification {
	var status string
	switch string(ch.Status) {
	case "successful":
		status = StatusPaid
	case "failed", "expired", "reversed":
		status = StatusFailed
	default:
		return nil
	}

	bookingID, _ := ch.Metadata["booking_id"].(string)
	return &Notification{
		ProviderTransactionID: ch.ID,
		BookingID:             bookingID,
		Status:                status,
		Amount:                ch.Amount,
	}
}
