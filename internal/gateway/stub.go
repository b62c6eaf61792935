package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordersys/go-payment-flow/internal/orders"
)

const payWindow = 15 * time.Minute

// Stub simulates a provider in memory: checkout/QR URLs with a pay window,
// and a Settle hook that plays the part of the customer paying or backing
// out. Real provider integration is out of scope.
type Stub struct {
	Provider string
	BaseURL  string

	mu            sync.Mutex
	byOrder       map[string]*stubTxn
	byCorrelation map[string]string // correlation id -> order id
	failures      int
}

type stubTxn struct {
	status        Status
	transactionID string
	amountCents   int64
	paidAt        time.Time
	result        InitiateResult
}

func NewStub(provider, baseURL string) *Stub {
	return &Stub{
		Provider:      provider,
		BaseURL:       baseURL,
		byOrder:       make(map[string]*stubTxn),
		byCorrelation: make(map[string]string),
	}
}

func (s *Stub) Initiate(_ context.Context, o *orders.Order) (*InitiateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.maybeFail(); err != nil {
		return nil, err
	}

	// correlation id is the idempotency key: a retried initiate returns the
	// transaction opened the first time
	if orderID, ok := s.byCorrelation[o.CorrelationID]; ok {
		res := s.byOrder[orderID].result
		return &res, nil
	}

	res := InitiateResult{
		Provider:  s.Provider,
		ExpiresAt: time.Now().UTC().Add(payWindow),
	}
	switch o.Channel {
	case orders.ChannelQR:
		res.QRCodeURL = fmt.Sprintf("%s/qr/%s.png", s.BaseURL, o.ID)
	default:
		res.PayURL = fmt.Sprintf("%s/checkout/%s", s.BaseURL, o.ID)
	}

	s.byOrder[o.ID] = &stubTxn{
		status:      StatusPending,
		amountCents: o.TotalCents,
		result:      res,
	}
	s.byCorrelation[o.CorrelationID] = o.ID
	return &res, nil
}

func (s *Stub) Query(_ context.Context, orderID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.maybeFail(); err != nil {
		return nil, err
	}

	txn, ok := s.byOrder[orderID]
	if !ok {
		// provider has nothing terminal to report yet
		return &Record{Status: StatusPending}, nil
	}
	return &Record{
		Status:        txn.status,
		TransactionID: txn.transactionID,
		AmountCents:   txn.amountCents,
		PaidAt:        txn.paidAt,
	}, nil
}

// Settle marks a transaction terminal, standing in for the customer
// completing or abandoning payment on the provider side.
func (s *Stub) Settle(orderID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.byOrder[orderID]
	if !ok {
		return fmt.Errorf("stub gateway: unknown order %s", orderID)
	}
	txn.status = status
	if status == StatusSuccess {
		txn.transactionID = uuid.NewString()
		txn.paidAt = time.Now().UTC()
	}
	return nil
}

// FailNext makes the next n calls return ErrUnavailable, for exercising
// retry and dead-letter paths.
func (s *Stub) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

func (s *Stub) maybeFail() error {
	if s.failures > 0 {
		s.failures--
		return ErrUnavailable
	}
	return nil
}
