package repository

import (
	"context"
	"database/sql"

	"github.com/suar-net/suar-playground/internal/model"
)

// requestRepository is the implementation of IRequestRepository.
type requestRepository struct {
	db *sql.DB
}

// NewRequestRepository is the constructor for requestRepository.
func NewRequestRepository(db *sql.DB) IRequestRepository {
	return &requestRepository{db: db}
}

// Create inserts a completed mock transaction into request_history.
func (r *requestRepository) Create(ctx context.Context, request *model.ArchivedRequest) error {
	query := `
		INSERT INTO request_history (id, executed_at, endpoint_id, request_method, request_url, request_headers, request_body, response_status_code, response_headers, response_body, duration_ms, client_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.ExecutedAt,
		request.EndpointID,
		request.RequestMethod,
		request.RequestURL,
		[]byte(request.RequestHeaders),
		request.RequestBody,
		request.ResponseStatusCode,
		[]byte(request.ResponseHeaders),
		request.ResponseBody,
		request.DurationMs,
		request.ClientIP,
	)

	return err
}

// Recent retrieves the newest archived transactions.
func (r *requestRepository) Recent(ctx context.Context, limit int) ([]*model.ArchivedRequest, error) {
	query := `
		SELECT id, executed_at, endpoint_id, request_method, request_url, request_headers, request_body, response_status_code, response_headers, response_body, duration_ms, client_ip
		FROM request_history
		ORDER BY executed_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []*model.ArchivedRequest{}
	for rows.Next() {
		var (
			req             model.ArchivedRequest
			requestHeaders  []byte
			responseHeaders []byte
		)
		if err := rows.Scan(
			&req.ID,
			&req.ExecutedAt,
			&req.EndpointID,
			&req.RequestMethod,
			&req.RequestURL,
			&requestHeaders,
			&req.RequestBody,
			&req.ResponseStatusCode,
			&responseHeaders,
			&req.ResponseBody,
			&req.DurationMs,
			&req.ClientIP,
		); err != nil {
			return nil, err
		}
		req.RequestHeaders = requestHeaders
		req.ResponseHeaders = responseHeaders
		requests = append(requests, &req)
	}

	return requests, rows.Err()
}
