package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"milltownabc/internal/logger"
)

var (
	ErrCaptchaMissing = errors.New("captcha token is required")
	ErrCaptchaFailed  = errors.New("captcha verification failed")
)

type CaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

func NewCaptchaVerifier(secret, verifyURL string) *CaptchaVerifier {
	return &CaptchaVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *CaptchaVerifier) Enabled() bool {
	return v.secret != ""
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks a client token against the provider. Without a secret every token passes.
func (v *CaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		logger.Debug("Captcha not configured, skipping verification", "ip", remoteIP)
		return nil
	}
	if token == "" {
		return ErrCaptchaMissing
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
		"remoteip": {remoteIP},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha provider: %w", err)
	}
	defer resp.Body.Close()

	var body siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode captcha response: %w", err)
	}
	if !body.Success {
		logger.Debug("Captcha rejected", "ip", remoteIP, "codes", body.ErrorCodes)
		return ErrCaptchaFailed
	}
	return nil
}
