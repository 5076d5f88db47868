// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// DeliveryResponse is a webhook delivery with its outcome.
type DeliveryResponse struct {
	store.WebhookDelivery
	ResponseCode *int64     `json:"response_code,omitempty"`
	ResponseBody string     `json:"response_body,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

func deliveryResponse(d store.WebhookDelivery) DeliveryResponse {
	resp := DeliveryResponse{
		WebhookDelivery: d,
		ResponseBody:    d.ResponseBody.String,
		ErrorMessage:    d.ErrorMessage.String,
	}
	if d.ResponseCode.Valid {
		code := d.ResponseCode.Int64
		resp.ResponseCode = &code
	}
	if d.NextRetryAt.Valid {
		t := d.NextRetryAt.Time
		resp.NextRetryAt = &t
	}
	if d.DeliveredAt.Valid {
		t := d.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	return resp
}

// ListWebhooks handles GET /projects/{id}/webhooks.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	hooks, err := h.webhooks.List(r.Context(), project.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, hooks, &Meta{Total: int64(len(hooks))})
}

// CreateWebhook handles POST /projects/{id}/webhooks. The signing secret is
// only returned here.
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var in service.WebhookInput
	if !decodeJSON(w, r, &in) {
		return
	}
	created, err := h.webhooks.Create(r.Context(), project.ID, middleware.GetUserID(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, created)
}

// GetWebhook handles GET /projects/{id}/webhooks/{webhookId}.
func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "webhookId", "webhook")
	if !ok {
		return
	}
	hooks, err := h.webhooks.List(r.Context(), project.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	for _, wh := range hooks {
		if wh.ID == id {
			WriteSuccess(w, wh, nil)
			return
		}
	}
	WriteNotFound(w, "Webhook not found")
}

// UpdateWebhook handles PUT /projects/{id}/webhooks/{webhookId}.
func (h *Handler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "webhookId", "webhook")
	if !ok {
		return
	}
	var in service.WebhookInput
	if !decodeJSON(w, r, &in) {
		return
	}
	updated, err := h.webhooks.Update(r.Context(), project.ID, id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, updated, nil)
}

// DeleteWebhook handles DELETE /projects/{id}/webhooks/{webhookId}.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "webhookId", "webhook")
	if !ok {
		return
	}
	if err := h.webhooks.Delete(r.Context(), project.ID, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// ListDeliveries handles GET /projects/{id}/webhooks/{webhookId}/deliveries.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "webhookId", "webhook")
	if !ok {
		return
	}
	p := parsePagination(r)
	items, total, err := h.webhooks.Deliveries(r.Context(), project.ID, id, p.PerPage, p.Offset())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]DeliveryResponse, len(items))
	for i, d := range items {
		out[i] = deliveryResponse(d)
	}
	WriteSuccess(w, out, p.Meta(total))
}

// TestWebhook handles POST /projects/{id}/webhooks/{webhookId}/test.
func (h *Handler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "webhookId", "webhook")
	if !ok {
		return
	}
	delivery, err := h.webhooks.Test(r.Context(), project.ID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, Response{Data: deliveryResponse(delivery)})
}
