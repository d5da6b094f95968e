package handler

import (
	"errors"
	"net/http"

	"github.com/sandeepkv93/course-identity-service/internal/http/response"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

// MaxAvatarUploadBytes bounds the multipart body of an avatar update.
const MaxAvatarUploadBytes = 6 << 20

type UserHandler struct {
	userSvc service.UserServiceInterface
}

func NewUserHandler(userSvc service.UserServiceInterface) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

type updateInfoRequest struct {
	Name string `json:"name"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// GetUser returns the cached identity, not a store read.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *UserHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	var body updateInfoRequest
	if err := decodeJSON(r, &body); err != nil {
		response.FromError(w, r, err)
		return
	}
	updated, err := h.userSvc.UpdateInfo(r.Context(), user.ID, body.Name)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"success": true, "user": updated})
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	var body updatePasswordRequest
	if err := decodeJSON(r, &body); err != nil {
		response.FromError(w, r, err)
		return
	}
	updated, err := h.userSvc.UpdatePassword(r.Context(), user.ID, body.OldPassword, body.NewPassword)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"success": true, "user": updated})
}

// UpdateAvatar accepts a multipart form with the image in the "avatar" field.
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarUploadBytes)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			response.FromError(w, r, badRequest(service.ErrFileTooBig.Error()))
			return
		}
		response.FromError(w, r, badRequest("avatar file is required"))
		return
	}
	defer file.Close()

	updated, err := h.userSvc.UpdateAvatar(r.Context(), user.ID, file, header.Size)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"success": true, "user": updated})
}
