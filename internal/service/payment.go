package service

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/api/dto"
	"github.com/lm-legal/payments/internal/domain/payment"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// PaymentService answers the read side of the ledger: the payer's own payments,
// the return-page status and the admin views.
type PaymentService interface {
	GetPayment(ctx context.Context, id int64) (*dto.PaymentResponse, error)
	GetStatus(ctx context.Context, id int64) (*dto.PaymentStatusResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)
	ListAdminPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)
	GetStats(ctx context.Context, req dto.PaymentStatsRequest) (*dto.PaymentStatsResponse, error)
}

type paymentService struct {
	ServiceParams
	now func() time.Time
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// visiblePayment loads the payment when the caller owns it or is an admin.
// Other callers get not found so ids cannot be enumerated.
func (s *paymentService) visiblePayment(ctx context.Context, id int64) (*payment.Payment, error) {
	userID := types.GetUserID(ctx)
	if userID == 0 {
		return nil, ierr.NewError("no authenticated user").
			WithHint("Please sign in").
			Mark(ierr.ErrUnauthenticated)
	}

	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID && !types.IsAdmin(ctx) {
		return nil, payment.ErrNotFound(id)
	}
	return p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id int64) (*dto.PaymentResponse, error) {
	p, err := s.visiblePayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if types.IsAdmin(ctx) {
		return dto.NewAdminPaymentResponse(p), nil
	}
	return dto.NewPaymentResponse(p), nil
}

func (s *paymentService) GetStatus(ctx context.Context, id int64) (*dto.PaymentStatusResponse, error) {
	p, err := s.visiblePayment(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.PaymentStatusResponse{
		PaymentID: p.ID,
		CaseID:    p.CaseID,
		Status:    p.Status,
		Final:     p.Status != types.PaymentStatusPending,
	}
	if p.Status == types.PaymentStatusPending {
		return resp, nil
	}

	inv, err := s.InvoiceRepo.GetByPaymentID(ctx, p.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if inv != nil {
		resp.InvoiceNumber = lo.ToPtr(inv.Number)
	}
	return resp, nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	userID := types.GetUserID(ctx)
	if userID == 0 {
		return nil, ierr.NewError("no authenticated user").
			WithHint("Please sign in").
			Mark(ierr.ErrUnauthenticated)
	}
	if filter == nil {
		filter = types.NewPaymentFilter()
	}
	filter.UserID = userID

	return s.list(ctx, filter, dto.NewPaymentResponse)
}

func (s *paymentService) ListAdminPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewPaymentFilter()
	}
	if filter.Status != nil {
		if err := filter.Status.Validate(); err != nil {
			return nil, err
		}
	}
	if filter.Method != nil {
		if err := filter.Method.Validate(); err != nil {
			return nil, err
		}
	}
	if filter.StartTime != nil && filter.EndTime != nil && filter.EndTime.Before(*filter.StartTime) {
		return nil, ierr.NewError("end_time is before start_time").
			WithHint("End time must not be before start time").
			Mark(ierr.ErrValidation)
	}

	return s.list(ctx, filter, dto.NewAdminPaymentResponse)
}

func (s *paymentService) list(ctx context.Context, filter *types.PaymentFilter, toResponse func(*payment.Payment) *dto.PaymentResponse) (*dto.ListPaymentsResponse, error) {
	var (
		payments []*payment.Payment
		total    int
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		payments, err = s.PaymentRepo.List(ctx, filter)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		total, err = s.PaymentRepo.Count(ctx, filter)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	items := lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
		return toResponse(p)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *paymentService) GetStats(ctx context.Context, req dto.PaymentStatsRequest) (*dto.PaymentStatsResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Period == "" {
		req.Period = types.StatsPeriodMonth
	}

	to := s.now()
	from := req.Period.Since(to)

	rows, err := s.PaymentRepo.Stats(ctx, from, to)
	if err != nil {
		return nil, err
	}

	resp := &dto.PaymentStatsResponse{
		Period:       req.Period,
		From:         from,
		To:           to,
		TotalRevenue: decimal.Zero,
		ByMethod:     make([]*dto.PaymentMethodStats, 0, len(rows)),
	}
	for _, row := range rows {
		resp.TotalCount += row.Count
		resp.TotalRevenue = resp.TotalRevenue.Add(row.Revenue)
		resp.ByMethod = append(resp.ByMethod, &dto.PaymentMethodStats{
			Method:  row.Method,
			Count:   row.Count,
			Revenue: row.Revenue,
		})
	}
	return resp, nil
}

func (s *paymentService) requireAdmin(ctx context.Context) error {
	if types.GetUserID(ctx) == 0 {
		return ierr.NewError("no authenticated user").
			WithHint("Please sign in").
			Mark(ierr.ErrUnauthenticated)
	}
	if !types.IsAdmin(ctx) {
		return ierr.NewError("admin role required").
			WithHint("You are not allowed to view this resource").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}
