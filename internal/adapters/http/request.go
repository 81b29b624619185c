package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

const userIDHeader = "X-User-Id"

// requireUserID reads the caller identity set by the upstream auth gateway.
func requireUserID(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "identify caller", errors.New(userIDHeader+" header is required"))
	}
	return userID, nil
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidInput("decode request", errors.New("request body is required"))
		}
		return invalidInput("decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func invalidInput(op string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, op, err)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidInput("parse query", fmt.Errorf("%s must be an integer", key))
	}
	return n, nil
}

func queryFloat(r *http.Request, key string) (float64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, invalidInput("parse query", fmt.Errorf("%s must be a number", key))
	}
	return v, true, nil
}

// queryTime accepts RFC 3339 timestamps and bare dates (treated as UTC midnight).
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalidInput("parse query", fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD", key))
}

// pageRequest reads page, size, sort and order. The use cases normalize bounds.
func pageRequest(r *http.Request) (domain.PageRequest, error) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return domain.PageRequest{}, err
	}
	size, err := queryInt(r, "size", domain.DefaultPageSize)
	if err != nil {
		return domain.PageRequest{}, err
	}

	query := r.URL.Query()
	sortBy := strings.TrimSpace(query.Get("sort"))
	desc := strings.EqualFold(strings.TrimSpace(query.Get("order")), "desc")
	if strings.HasPrefix(sortBy, "-") {
		sortBy, desc = strings.TrimPrefix(sortBy, "-"), true
	}
	return domain.PageRequest{Page: page, Size: size, SortBy: sortBy, Desc: desc}, nil
}
