package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"comercio/backend/internal/domain"
	"comercio/backend/internal/store"
)

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (domain.Invoice, error) {
	if !isMoveType(req.MoveType) {
		return domain.Invoice{}, store.ErrValidation
	}

	invoice := domain.Invoice{
		CompanyID: s.companyOrDefault(req.CompanyID),
		PartnerID: req.PartnerID,
		MoveType:  req.MoveType,
		State:     domain.InvoiceStateDraft,
		Lines:     make([]domain.InvoiceLine, 0, len(req.Lines)),
	}
	for _, in := range req.Lines {
		line, err := buildLine(in)
		if err != nil {
			return domain.Invoice{}, err
		}
		invoice.Lines = append(invoice.Lines, line)
	}

	if len(invoice.Lines) > 0 {
		if err := s.applyAutomaticDiscounts(ctx, &invoice); err != nil {
			return domain.Invoice{}, err
		}
	}

	created, err := s.repo.CreateInvoice(ctx, invoice)
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logAudit(ctx, created.CompanyID, "invoice_create", "invoice", created.ID,
		fmt.Sprintf("move_type=%s,lines=%d", created.MoveType, len(created.Lines)))
	return *created, nil
}

func (s *Service) AddInvoiceLine(ctx context.Context, invoiceID string, in domain.InvoiceLineInput) (domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.State != domain.InvoiceStateDraft {
		return domain.Invoice{}, store.ErrValidation
	}

	line, err := buildLine(in)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.Lines = append(invoice.Lines, line)

	if err := s.applyAutomaticDiscounts(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}

	saved, err := s.repo.UpdateInvoice(ctx, *invoice)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *saved, nil
}

// SetInvoicePartner changes the customer on a draft invoice and re-runs the
// discount pass so already-undiscounted lines pick up the new rate.
func (s *Service) SetInvoicePartner(ctx context.Context, invoiceID string, partnerID string) (domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.State != domain.InvoiceStateDraft {
		return domain.Invoice{}, store.ErrValidation
	}

	if partnerID != "" {
		if _, err := s.repo.GetPartner(ctx, partnerID); err != nil {
			return domain.Invoice{}, err
		}
	}
	invoice.PartnerID = partnerID

	if err := s.applyAutomaticDiscounts(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}

	saved, err := s.repo.UpdateInvoice(ctx, *invoice)
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logAudit(ctx, saved.CompanyID, "invoice_set_partner", "invoice", saved.ID, "partner="+partnerID)
	return *saved, nil
}

func (s *Service) PostInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.State != domain.InvoiceStateDraft {
		return domain.Invoice{}, store.ErrValidation
	}

	// last chance to stamp discounts before the document freezes
	if err := s.applyAutomaticDiscounts(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}

	now := time.Now().UTC()
	invoice.State = domain.InvoiceStatePosted
	invoice.PostedAt = &now

	saved, err := s.repo.UpdateInvoice(ctx, *invoice)
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logAudit(ctx, saved.CompanyID, "invoice_post", "invoice", saved.ID, "")
	return *saved, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, companyID string, state string, limit int) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, s.companyOrDefault(companyID), state, limit)
}

// applyAutomaticDiscounts stamps the partner's resolved discount rate onto
// product lines that still carry a zero discount. Sales documents only; lines
// with an explicit discount, non-product lines, and lines without a product
// are left alone, which also makes a re-run a no-op.
func (s *Service) applyAutomaticDiscounts(ctx context.Context, invoice *domain.Invoice) error {
	if invoice.MoveType != domain.MoveTypeCustomerInvoice && invoice.MoveType != domain.MoveTypeCustomerRefund {
		return nil
	}

	customerType := domain.CustomerTypeNone
	if invoice.PartnerID != "" {
		partner, err := s.repo.GetPartner(ctx, invoice.PartnerID)
		if err != nil {
			return err
		}
		customerType = partner.CustomerType
	}

	pct, err := s.ResolveDiscount(ctx, customerType, invoice.CompanyID)
	if err != nil {
		return err
	}
	if pct == 0 {
		log.Printf("[service] invoice %s: no discount to apply (type=%s)", invoice.ID, customerType)
		return nil
	}

	stamped := 0
	for i := range invoice.Lines {
		line := &invoice.Lines[i]
		if line.LineType != domain.LineTypeProduct || line.ProductID == "" {
			continue
		}
		if line.DiscountPercent != 0 {
			continue
		}
		line.DiscountPercent = pct
		stamped++
	}
	if stamped > 0 {
		log.Printf("[service] invoice %s: applied %.2f%% discount to %d line(s)", invoice.ID, pct, stamped)
	}
	return nil
}

func buildLine(in domain.InvoiceLineInput) (domain.InvoiceLine, error) {
	lineType := in.LineType
	if lineType == "" {
		lineType = domain.LineTypeProduct
	}
	switch lineType {
	case domain.LineTypeProduct, domain.LineTypeSection, domain.LineTypeNote:
	default:
		return domain.InvoiceLine{}, store.ErrValidation
	}
	if in.Quantity < 0 || in.UnitPriceCents < 0 {
		return domain.InvoiceLine{}, store.ErrValidation
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return domain.InvoiceLine{}, store.ErrValidation
	}
	return domain.InvoiceLine{
		LineType:        lineType,
		ProductID:       in.ProductID,
		Description:     in.Description,
		Quantity:        in.Quantity,
		UnitPriceCents:  in.UnitPriceCents,
		DiscountPercent: in.DiscountPercent,
	}, nil
}

func isMoveType(value string) bool {
	switch value {
	case domain.MoveTypeCustomerInvoice, domain.MoveTypeCustomerRefund,
		domain.MoveTypeVendorBill, domain.MoveTypeVendorRefund:
		return true
	}
	return false
}
