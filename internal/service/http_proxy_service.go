package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suar-net/suar-playground/internal/config"
	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

const (
	maxResponseBodySize   = 10 * 1024 * 1024 // 10 MB
	defaultRequestTimeout = 10 * time.Second
)

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Only these methods carry the tester's body upstream.
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

var blockedHeaders = map[string]bool{
	"Host":                true,
	"Proxy-Authorization": true,
	"X-Forwarded-For":     true,
}

type outboundRequest struct {
	Method  string
	URL     *url.URL
	Headers http.Header
	Body    []byte
}

// isPrivateIP checks if a given IP address is private.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast()
}

type HTTPProxyService struct {
	httpClient   *http.Client
	timeout      time.Duration
	allowPrivate bool
	lookupIP     func(ctx context.Context, host string) ([]net.IP, error)
	logger       *zap.Logger
}

func NewHTTPProxyService(cfg config.ProxyConfig, logger *zap.Logger) *HTTPProxyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// Create a custom transport with optimized settings
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPProxyService{
		httpClient:   &http.Client{Transport: transport},
		timeout:      timeout,
		allowPrivate: cfg.AllowPrivate,
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
		logger: logger,
	}
}

func (s *HTTPProxyService) newOutboundRequest(ctx context.Context, dto *model.DTOProxyRequest) (*outboundRequest, error) {
	method := strings.ToUpper(strings.TrimSpace(dto.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return nil, invalidInput("Unsupported HTTP method: %s", dto.Method)
	}

	if strings.TrimSpace(dto.URL) == "" {
		return nil, invalidInput("URL is required")
	}
	parsedURL, err := url.Parse(dto.URL)
	if err != nil || parsedURL.Host == "" {
		return nil, invalidInput("Invalid URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, invalidInput("Invalid URL scheme: %s. Only 'http' and 'https' are allowed", parsedURL.Scheme)
	}

	// SSRF protection, only when the deployment opts out of private targets.
	if !s.allowPrivate {
		ips, err := s.lookupIP(ctx, parsedURL.Hostname())
		if err != nil {
			return nil, invalidInput("Could not resolve hostname: %s", parsedURL.Hostname())
		}
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return nil, invalidInput("Requests to private IP addresses are not allowed")
			}
		}
	}

	headers := make(http.Header)
	for key, value := range dto.Headers {
		if !blockedHeaders[http.CanonicalHeaderKey(key)] {
			headers.Set(key, value)
		}
	}

	req := &outboundRequest{Method: method, URL: parsedURL, Headers: headers}
	if dto.Body != "" && bodyMethods[method] {
		req.Body = []byte(dto.Body)
	}
	return req, nil
}

// ProcessRequest forwards the tester request. Requests that never produce a
// response fail with *UpstreamError carrying the elapsed time.
func (s *HTTPProxyService) ProcessRequest(ctx context.Context, dto *model.DTOProxyRequest) (*model.DTOProxyResponse, error) {
	outbound, err := s.newOutboundRequest(ctx, dto)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, outbound)
}

func (s *HTTPProxyService) execute(ctx context.Context, outbound *outboundRequest) (*model.DTOProxyResponse, error) {
	startTime := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(outbound.Body) > 0 {
		bodyReader = bytes.NewReader(outbound.Body)
	}

	httpRequest, err := http.NewRequestWithContext(reqCtx, outbound.Method, outbound.URL.String(), bodyReader)
	if err != nil {
		return nil, invalidInput("Invalid request: %v", err)
	}
	httpRequest.Header = outbound.Headers

	httpResponse, err := s.httpClient.Do(httpRequest)
	if err != nil {
		return nil, s.upstreamError(err, startTime)
	}
	defer httpResponse.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBodySize))
	if err != nil {
		return nil, s.upstreamError(err, startTime)
	}

	headers := make(map[string]string, len(httpResponse.Header))
	for key, values := range httpResponse.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ", ")
	}

	return &model.DTOProxyResponse{
		Status:     httpResponse.StatusCode,
		StatusText: http.StatusText(httpResponse.StatusCode),
		Headers:    headers,
		Data:       string(data),
		Timing:     time.Since(startTime).Milliseconds(),
	}, nil
}

func (s *HTTPProxyService) upstreamError(err error, startTime time.Time) *UpstreamError {
	timing := time.Since(startTime).Milliseconds()

	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{
			Message: "Request timed out (" + s.timeout.String() + ")",
			Timing:  timing,
			kind:    ErrRequestTimeout,
		}
	}

	s.logger.Debug("tester request failed", zap.Error(err))
	msg := "Failed to reach the server"
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	return &UpstreamError{Message: msg, Timing: timing, kind: ErrUpstream}
}
