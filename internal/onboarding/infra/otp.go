package infra

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CodeSender delivers a one-time code to an e-mail address.
type CodeSender interface {
	SendCode(ctx context.Context, to, code string) error
}

// OTPConfig tunes the challenger. Fixed codes, when set, replace the random
// ones so a demo user can always type 123456 / 654321.
type OTPConfig struct {
	TTL             time.Duration
	MaxAttempts     int
	FixedMobileCode string
	FixedEmailCode  string
}

type challenge struct {
	to         port.OTPChannels
	mobileHash []byte
	emailHash  []byte
	expiresAt  time.Time
	attempts   int
}

// OTPChallenger keeps one open challenge per session in memory. Codes are
// stored as bcrypt hashes and expire after the configured TTL.
type OTPChallenger struct {
	mu         sync.Mutex
	challenges map[string]*challenge
	cfg        OTPConfig
	sender     CodeSender
	logger     *zap.Logger
	now        func() time.Time
}

// NewOTPChallenger creates a challenger. sender may be nil, in which case
// both codes are logged at Info.
func NewOTPChallenger(cfg OTPConfig, sender CodeSender, logger *zap.Logger) *OTPChallenger {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &OTPChallenger{
		challenges: make(map[string]*challenge),
		cfg:        cfg,
		sender:     sender,
		logger:     logger,
		now:        time.Now,
	}
}

// Open issues a fresh pair of codes for sessionID, replacing any open one.
func (o *OTPChallenger) Open(ctx context.Context, sessionID string, to port.OTPChannels) error {
	ctx, span := tracer.Start(ctx, "OTPChallenger.Open")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	return o.issue(ctx, sessionID, to)
}

// Resend issues new codes to the destinations of the open challenge.
func (o *OTPChallenger) Resend(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "OTPChallenger.Resend")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	o.mu.Lock()
	c, ok := o.challenges[sessionID]
	o.mu.Unlock()
	if !ok {
		return &domain.ErrNotFound{Resource: "otp challenge", ID: sessionID}
	}
	return o.issue(ctx, sessionID, c.to)
}

// Verify checks both codes. A wrong pair consumes an attempt; once the
// attempts run out the challenge only accepts a resend.
func (o *OTPChallenger) Verify(ctx context.Context, sessionID string, codes odomain.OTPCodes) (bool, error) {
	_, span := tracer.Start(ctx, "OTPChallenger.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	o.mu.Lock()
	defer o.mu.Unlock()

	c, ok := o.challenges[sessionID]
	if !ok {
		return false, nil
	}
	if o.now().After(c.expiresAt) || c.attempts >= o.cfg.MaxAttempts {
		return false, nil
	}

	mobileOK := bcrypt.CompareHashAndPassword(c.mobileHash, []byte(codes.Mobile)) == nil
	emailOK := bcrypt.CompareHashAndPassword(c.emailHash, []byte(codes.Email)) == nil
	if !mobileOK || !emailOK {
		c.attempts++
		o.logger.Info("otp mismatch",
			zap.String("session_id", sessionID),
			zap.Int("attempts", c.attempts),
		)
		return false, nil
	}

	delete(o.challenges, sessionID)
	return true, nil
}

func (o *OTPChallenger) issue(ctx context.Context, sessionID string, to port.OTPChannels) error {
	mobileCode, emailCode := o.cfg.FixedMobileCode, o.cfg.FixedEmailCode
	if mobileCode == "" {
		mobileCode = generateCode()
	}
	if emailCode == "" {
		emailCode = generateCode()
	}

	mobileHash, err := bcrypt.GenerateFromPassword([]byte(mobileCode), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash mobile code: %w", err)
	}
	emailHash, err := bcrypt.GenerateFromPassword([]byte(emailCode), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash email code: %w", err)
	}

	if o.sender != nil && to.Email != "" {
		if err := o.sender.SendCode(ctx, to.Email, emailCode); err != nil {
			return fmt.Errorf("send email code: %w", err)
		}
	}

	o.mu.Lock()
	o.challenges[sessionID] = &challenge{
		to:         to,
		mobileHash: mobileHash,
		emailHash:  emailHash,
		expiresAt:  o.now().Add(o.cfg.TTL),
	}
	o.mu.Unlock()

	delivered := o.sender != nil && to.Email != ""
	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("mobile", to.Mobile),
		zap.String("email", to.Email),
		zap.Bool("email_delivered", delivered),
	}
	if !delivered {
		// Nothing reaches the user; the log is the only channel.
		o.logger.Info("otp issued without delivery channel", append(fields,
			zap.String("mobile_code", mobileCode),
			zap.String("email_code", emailCode),
		)...)
		return nil
	}
	o.logger.Info("otp issued", fields...)
	// No SMS gateway yet.
	o.logger.Debug("otp mobile code", zap.String("session_id", sessionID), zap.String("mobile_code", mobileCode))
	return nil
}

func generateCode() string {
	code := ""
	for i := 0; i < 6; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		code += fmt.Sprintf("%d", n.Int64())
	}
	return code
}
