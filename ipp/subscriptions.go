package ipp

import (
	"context"
	"io"
	"time"

	"github.com/OpenPrinting/goipp"
	"github.com/gopherprint/ippserver/printer"
)

// registerSubscriptionOps wires the PWG 5100.7 event-notification
// operations: a bounded per-subscription event ring, owned by the
// printer (printer.Subscription).
func (s *Server) registerSubscriptionOps() {
	s.handlers[goipp.OpCreatePrinterSubscriptions] = s.handleCreateSubscriptions
	s.handlers[goipp.OpCreateJobSubscriptions] = s.handleCreateSubscriptions
	s.handlers[goipp.OpGetSubscriptionAttributes] = s.handleGetSubscriptionAttributes
	s.handlers[goipp.OpGetSubscriptions] = s.handleGetSubscriptions
	s.handlers[goipp.OpRenewSubscription] = s.handleRenewSubscription
	s.handlers[goipp.OpCancelSubscription] = s.handleCancelSubscription
	s.handlers[goipp.OpGetNotifications] = s.handleGetNotifications
}

const defaultLeaseDuration = 24 * time.Hour

func (s *Server) handleCreateSubscriptions(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	events := extractStrings(req.Operation, "notify-events")
	if len(events) == 0 {
		events = []string{"all"}
	}
	var jobID int32
	if v, err := extractValue[goipp.Integer](req.Operation, "notify-job-id"); err == nil {
		jobID = int32(v)
	}
	lease := defaultLeaseDuration
	if v, err := extractValue[goipp.Integer](req.Operation, "notify-lease-duration"); err == nil && v > 0 {
		lease = time.Duration(v) * time.Second
	}

	p.Lock()
	sub := p.AddSubscription(events, jobID, lease)
	p.Unlock()

	resp := newResponse(req.RequestID, goipp.StatusOk)
	a := adder(&resp.Subscription)
	a("notify-subscription-id", goipp.TagInteger, goipp.Integer(sub.ID))
	a("notify-lease-duration", goipp.TagInteger, goipp.Integer(lease/time.Second))
	return resp, nil
}

func (s *Server) handleGetSubscriptionAttributes(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "notify-subscription-id")
	if err != nil {
		return nil, err
	}
	sub, ok := p.FindSubscription(int(id))
	if !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "subscription not found"), nil
	}
	resp := newResponse(req.RequestID, goipp.StatusOk)
	resp.Subscription = subscriptionAttrs(sub)
	return resp, nil
}

func (s *Server) handleGetSubscriptions(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	resp := newResponse(req.RequestID, goipp.StatusOk)
	for _, sub := range p.Subscriptions() {
		resp.Subscription = append(resp.Subscription, subscriptionAttrs(sub)...)
	}
	return resp, nil
}

func (s *Server) handleRenewSubscription(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "notify-subscription-id")
	if err != nil {
		return nil, err
	}
	sub, ok := p.FindSubscription(int(id))
	if !ok {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "subscription not found"), nil
	}
	lease := defaultLeaseDuration
	if v, err := extractValue[goipp.Integer](req.Operation, "notify-lease-duration"); err == nil && v > 0 {
		lease = time.Duration(v) * time.Second
	}
	sub.LeaseUntil = time.Now().Add(lease)
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

func (s *Server) handleCancelSubscription(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := extractValue[goipp.Integer](req.Operation, "notify-subscription-id")
	if err != nil {
		return nil, err
	}
	if !p.CancelSubscription(int(id)) {
		return errorResponse(req.RequestID, goipp.StatusErrorNotFound, "subscription not found"), nil
	}
	return newResponse(req.RequestID, goipp.StatusOk), nil
}

// handleGetNotifications drains buffered events for the requested
// subscription ids, per PWG 5100.7 §6's polling model (this server
// does not implement RFC 8030-style push delivery).
func (s *Server) handleGetNotifications(ctx context.Context, req *goipp.Message, _ io.Reader) (*goipp.Message, error) {
	p, err := s.printerFromRequest(req)
	if err != nil {
		return nil, err
	}
	ids := req.Operation
	resp := newResponse(req.RequestID, goipp.StatusOk)
	for _, attr := range ids {
		if attr.Name != "notify-subscription-ids" {
			continue
		}
		for _, v := range attr.Values {
			id, ok := v.V.(goipp.Integer)
			if !ok {
				continue
			}
			sub, ok := p.FindSubscription(int(id))
			if !ok {
				continue
			}
			for _, event := range sub.Events() {
				resp.EventNotification = append(resp.EventNotification, event...)
			}
		}
	}
	return resp, nil
}

func subscriptionAttrs(sub *printer.Subscription) goipp.Attributes {
	var attrs goipp.Attributes
	a := adder(&attrs)
	a("notify-subscription-id", goipp.TagInteger, goipp.Integer(sub.ID))
	a("notify-job-id", goipp.TagInteger, goipp.Integer(sub.JobID))
	a("notify-events", goipp.TagKeyword, stringsToValues(sub.Events)...)
	a("notify-lease-duration", goipp.TagInteger, goipp.Integer(time.Until(sub.LeaseUntil)/time.Second))
	return attrs
}
