package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/observability"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

type AdminHandler struct {
	userSvc service.UserServiceInterface
}

func NewAdminHandler(userSvc service.UserServiceInterface) *AdminHandler {
	return &AdminHandler{userSvc: userSvc}
}

type updateRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	pageReq, err := parsePageRequest(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	page, err := h.userSvc.List(r.Context(), pageReq)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"users":   page.Items,
		"pagination": map[string]any{
			"page":        page.Page,
			"page_size":   page.PageSize,
			"total":       page.Total,
			"total_pages": page.TotalPages,
		},
	})
}

func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	var body updateRoleRequest
	if err := decodeJSON(r, &body); err != nil {
		response.FromError(w, r, err)
		return
	}
	updated, err := h.userSvc.UpdateRole(r.Context(), actor.ID, body.Email, body.Role)
	if err != nil {
		observability.Audit(r, observability.AuditInput{
			EventName: "admin.user.role.failed", ActorUserID: userIDString(actor.ID), TargetType: "user", Action: "update_role", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, observability.AuditInput{
		EventName: "admin.user.role.updated", ActorUserID: userIDString(actor.ID), TargetType: "user", TargetID: userIDString(updated.ID), Action: "update_role", Outcome: "success", Reason: string(updated.Role),
	})
	response.JSON(w, r, http.StatusCreated, map[string]any{"success": true, "user": updated})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	if err := h.userSvc.Delete(r.Context(), actor.ID, id); err != nil {
		observability.Audit(r, observability.AuditInput{
			EventName: "admin.user.delete.failed", ActorUserID: userIDString(actor.ID), TargetType: "user", TargetID: userIDString(id), Action: "delete", Outcome: "failure", Reason: failureReason(err),
		})
		response.FromError(w, r, err)
		return
	}
	observability.Audit(r, observability.AuditInput{
		EventName: "admin.user.deleted", ActorUserID: userIDString(actor.ID), TargetType: "user", TargetID: userIDString(id), Action: "delete", Outcome: "success",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true, "message": "User deleted successfully"})
}
