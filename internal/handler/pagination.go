package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/skillswap/chat-server/internal/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// HistoryParams pages a conversation by sequence number rather than offset,
// so a reconnecting client can resume after the last seq it saw.
type HistoryParams struct {
	AfterSeq int64
	Limit    int
}

func ParseHistoryParams(r *http.Request) (HistoryParams, error) {
	q := r.URL.Query()
	params := HistoryParams{Limit: DefaultLimit}

	if raw := q.Get("afterSeq"); raw != "" {
		afterSeq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || afterSeq < 0 {
			return params, apperrors.ValidationError("afterSeq must be a non-negative integer")
		}
		params.AfterSeq = afterSeq
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return params, apperrors.ValidationError("limit must be a positive integer")
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
		params.Limit = limit
	}

	return params, nil
}
