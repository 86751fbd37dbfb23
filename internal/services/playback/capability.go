package playback

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mslclient/internal/domain"
)

var errNoCertificate = errors.New("playback: manifest carries no service certificate")

// capability answers device callbacks for one manifest under one session.
type capability struct {
	svc  *Service
	sess domain.Session
	m    Manifest
}

// Capability returns the LicenseCapability for m. The session is captured
// by value; a renegotiated session needs a new capability.
func (s *Service) Capability(sess domain.Session, m Manifest) domain.LicenseCapability {
	return capability{svc: s, sess: sess, m: m}
}

func (c capability) Certificate(_ context.Context, contentRef string) ([]byte, error) {
	if len(c.m.Certificate) == 0 {
		return nil, errNoCertificate
	}
	c.svc.log.Debug("serving service certificate", zap.String("content_ref", contentRef))
	return append([]byte(nil), c.m.Certificate...), nil
}

func (c capability) License(ctx context.Context, contentRef string, challenge []byte) ([]byte, error) {
	c.svc.log.Debug("requesting license", zap.String("content_ref", contentRef), zap.Int("challenge_bytes", len(challenge)))
	return c.svc.License(ctx, c.sess, LicenseRequest{
		PlaybackContextID: c.m.PlaybackContextID,
		DRMContextID:      c.m.DRMContextID,
		Challenge:         challenge,
	})
}
