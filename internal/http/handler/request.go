package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sandeepkv93/course-identity-service/internal/domain"
	"github.com/sandeepkv93/course-identity-service/internal/http/middleware"
	"github.com/sandeepkv93/course-identity-service/internal/repository"
	"github.com/sandeepkv93/course-identity-service/internal/service"
)

func badRequest(message string) error {
	return &service.Error{Kind: service.KindValidation, Message: message}
}

// decodeJSON reads a single JSON object; unknown fields are ignored.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return badRequest("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return badRequest("request body too large")
		}
		return badRequest("invalid request body")
	}
	return nil
}

// currentUser returns the session snapshot attached by AuthMiddleware.
func currentUser(r *http.Request) (*domain.User, error) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, &service.Error{Kind: service.KindUnauthenticated, Message: "Please login to access this resource"}
	}
	return u, nil
}

func parsePathID(input string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(input), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid user id")
	}
	return uint(id), nil
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	page := repository.DefaultPage
	pageSize := repository.DefaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, badRequest("page must be a positive integer")
		}
		page = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, badRequest("page_size must be a positive integer")
		}
		if v > repository.MaxPageSize {
			return repository.PageRequest{}, badRequest(fmt.Sprintf("page_size must be <= %d", repository.MaxPageSize))
		}
		pageSize = v
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}

func userIDString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func failureReason(err error) string {
	return strings.ToLower(string(service.KindOf(err)))
}
