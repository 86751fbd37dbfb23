package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
)

const (
	DefaultClientVersion = "6.0011.511.011"
	DefaultUIVersion     = "shakti-vb45817f4"

	licenseClientVersion = "4.0004.899.011"
	licenseUIVersion     = "akira"
	appID                = "14673889385265"
	unknownError         = "unknown error"
)

// DefaultProfiles are requested when a ManifestRequest names none.
var DefaultProfiles = []string{
	"playready-h264bpl30-dash",
	"playready-h264mpl30-dash",
	"playready-h264mpl31-dash",
	"heaac-2-dash",
	"webvtt-lssdh-ios8",
	"dfxp-ls-sdh",
}

// Config holds the endpoints and client identity strings.
type Config struct {
	ManifestURL   string
	LicenseURL    string
	Path          string
	Languages     []string
	ClientVersion string
	UIVersion     string
}

// ManifestRequest selects the title and stream profiles to look up.
type ManifestRequest struct {
	ViewableID int64
	Profiles   []string
}

// Manifest is what a license flow needs from a manifest lookup.
type Manifest struct {
	ViewableID        int64
	PlaybackContextID string
	DRMContextID      string
	PSSH              []byte
	Certificate       []byte
	// Viewable is the undecoded viewable, tracks included.
	Viewable json.RawMessage
}

// LicenseRequest carries one device challenge for a manifest.
type LicenseRequest struct {
	PlaybackContextID string
	DRMContextID      string
	Challenge         []byte
	SessionID         string
}

// Service performs manifest and license calls over an Exchanger.
type Service struct {
	ex  domain.Exchanger
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// New constructs a playback Service.
func New(ex domain.Exchanger, cfg Config, log *zap.Logger) *Service {
	if cfg.Path == "" {
		cfg.Path = msl.DefaultPath
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = msl.DefaultLanguages
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = DefaultClientVersion
	}
	if cfg.UIVersion == "" {
		cfg.UIVersion = DefaultUIVersion
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{ex: ex, cfg: cfg, log: log, now: time.Now}
}

type manifestCall struct {
	Method                string                     `json:"method"`
	LookupType            string                     `json:"lookupType"`
	ViewableIDs           []int64                    `json:"viewableIds"`
	Profiles              []string                   `json:"profiles"`
	DRMSystem             string                     `json:"drmSystem"`
	AppID                 string                     `json:"appId"`
	SessionParams         map[string]any             `json:"sessionParams"`
	SessionID             string                     `json:"sessionId"`
	TrackID               int                        `json:"trackId"`
	Flavor                string                     `json:"flavor"`
	SecureURLs            bool                       `json:"secureUrls"`
	SupportPreviewContent bool                       `json:"supportPreviewContent"`
	ForceClearStreams     bool                       `json:"forceClearStreams"`
	Languages             []string                   `json:"languages"`
	ClientVersion         string                     `json:"clientVersion"`
	UIVersion             string                     `json:"uiVersion"`
	TitleSpecificData     map[string]map[string]bool `json:"titleSpecificData"`
	VideoOutputInfo       []videoOutput              `json:"videoOutputInfo"`
	IsNonMember           bool                       `json:"isNonMember"`
	ShowAllSubDubTracks   bool                       `json:"showAllSubDubTracks"`
	PreferAssistiveAudio  bool                       `json:"preferAssistiveAudio"`
	SupportsPreReleasePin bool                       `json:"supportsPreReleasePin"`
	SupportsWatermark     bool                       `json:"supportsWatermark"`
	IsBranching           bool                       `json:"isBranching"`
	UseHTTPSStreams       bool                       `json:"useHttpsStreams"`
	ImageSubtitleHeight   int                        `json:"imageSubtitleHeight"`
}

type videoOutput struct {
	Type                  string   `json:"type"`
	OutputType            string   `json:"outputType"`
	SupportedHdcpVersions []string `json:"supportedHdcpVersions"`
	IsHdcpEngaged         bool     `json:"isHdcpEngaged"`
}

type manifestResult struct {
	Result *struct {
		Viewables           []json.RawMessage `json:"viewables"`
		ErrorDisplayMessage string            `json:"errorDisplayMessage"`
	} `json:"result"`
}

type viewable struct {
	PlaybackContextID string   `json:"playbackContextId"`
	DRMContextID      string   `json:"drmContextId"`
	PSSHB64           []string `json:"psshb64"`
	Cert              string   `json:"cert"`
}

// Manifest looks up the playback manifest for req.ViewableID.
func (s *Service) Manifest(ctx context.Context, sess domain.Session, req ManifestRequest) (Manifest, error) {
	profiles := req.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	id := fmt.Sprint(req.ViewableID)
	call := manifestCall{
		Method:                "manifest",
		LookupType:            "PREPARE",
		ViewableIDs:           []int64{req.ViewableID},
		Profiles:              profiles,
		DRMSystem:             "widevine",
		AppID:                 appID,
		SessionParams:         map[string]any{"pinCapableClient": false, "uiplaycontext": "null"},
		SessionID:             appID,
		Flavor:                "PRE_FETCH",
		SecureURLs:            true,
		SupportPreviewContent: true,
		Languages:             s.cfg.Languages,
		ClientVersion:         s.cfg.ClientVersion,
		UIVersion:             s.cfg.UIVersion,
		TitleSpecificData:     map[string]map[string]bool{id: {"unletterboxed": false}},
		VideoOutputInfo: []videoOutput{{
			Type:                  "DigitalVideoOutputDescriptor",
			OutputType:            "unknown",
			SupportedHdcpVersions: []string{},
			IsHdcpEngaged:         true,
		}},
		ShowAllSubDubTracks:   true,
		SupportsPreReleasePin: true,
		SupportsWatermark:     true,
		ImageSubtitleHeight:   1080,
	}

	raw, err := s.ex.Send(ctx, sess, s.cfg.ManifestURL, s.cfg.Path, call)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %d: %w", req.ViewableID, err)
	}
	var res manifestResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return Manifest{}, fmt.Errorf("manifest %d: %w", req.ViewableID, err)
	}
	if res.Result == nil {
		return Manifest{}, &msl.ApplicationError{Message: unknownError}
	}
	if len(res.Result.Viewables) == 0 {
		return Manifest{}, applicationError(res.Result.ErrorDisplayMessage)
	}
	var v viewable
	if err := json.Unmarshal(res.Result.Viewables[0], &v); err != nil {
		return Manifest{}, fmt.Errorf("manifest %d: viewable: %w", req.ViewableID, err)
	}
	if v.PlaybackContextID == "" || v.DRMContextID == "" {
		return Manifest{}, applicationError(res.Result.ErrorDisplayMessage)
	}

	m := Manifest{
		ViewableID:        req.ViewableID,
		PlaybackContextID: v.PlaybackContextID,
		DRMContextID:      v.DRMContextID,
		Viewable:          res.Result.Viewables[0],
	}
	if len(v.PSSHB64) > 0 {
		if m.PSSH, err = crypto.DecodeB64(v.PSSHB64[0]); err != nil {
			return Manifest{}, fmt.Errorf("manifest %d: psshb64: %w", req.ViewableID, err)
		}
	}
	if v.Cert != "" {
		if m.Certificate, err = crypto.DecodeB64(v.Cert); err != nil {
			return Manifest{}, fmt.Errorf("manifest %d: cert: %w", req.ViewableID, err)
		}
	}
	s.log.Debug("manifest resolved",
		zap.Int64("viewable_id", req.ViewableID),
		zap.String("playback_context_id", m.PlaybackContextID),
		zap.Bool("has_pssh", len(m.PSSH) > 0),
		zap.Bool("has_cert", len(m.Certificate) > 0))
	return m, nil
}

type licenseCall struct {
	Method            string      `json:"method"`
	LicenseType       string      `json:"licenseType"`
	ClientVersion     string      `json:"clientVersion"`
	UIVersion         string      `json:"uiVersion"`
	Languages         []string    `json:"languages"`
	PlaybackContextID string      `json:"playbackContextId"`
	DRMContextIDs     []string    `json:"drmContextIds"`
	Challenges        []challenge `json:"challenges"`
	ClientTime        int64       `json:"clientTime"`
	XID               int64       `json:"xid"`
}

type challenge struct {
	DataBase64 string `json:"dataBase64"`
	SessionID  string `json:"sessionId"`
}

type licenseResult struct {
	Success *bool `json:"success"`
	Result  struct {
		Licenses []struct {
			Data string `json:"data"`
		} `json:"licenses"`
	} `json:"result"`
}

// License exchanges a device challenge for a license.
func (s *Service) License(ctx context.Context, sess domain.Session, req LicenseRequest) ([]byte, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = appID
	}
	now := s.now()
	call := licenseCall{
		Method:            "license",
		LicenseType:       "STANDARD",
		ClientVersion:     licenseClientVersion,
		UIVersion:         licenseUIVersion,
		Languages:         s.cfg.Languages,
		PlaybackContextID: req.PlaybackContextID,
		DRMContextIDs:     []string{req.DRMContextID},
		Challenges:        []challenge{{DataBase64: crypto.B64(req.Challenge), SessionID: sessionID}},
		ClientTime:        now.Unix(),
		XID:               now.UnixMilli(),
	}

	raw, err := s.ex.Send(ctx, sess, s.cfg.LicenseURL, s.cfg.Path, call)
	if err != nil {
		return nil, fmt.Errorf("license: %w", err)
	}
	var res licenseResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("license: %w", err)
	}
	if res.Success != nil && !*res.Success {
		return nil, &msl.ApplicationError{Message: string(raw)}
	}
	if len(res.Result.Licenses) == 0 || res.Result.Licenses[0].Data == "" {
		return nil, &msl.ApplicationError{Message: "license response carries no license: " + string(raw)}
	}
	lic, err := crypto.DecodeB64(res.Result.Licenses[0].Data)
	if err != nil {
		return nil, fmt.Errorf("license: data: %w", err)
	}
	return lic, nil
}

func applicationError(msg string) error {
	if msg == "" {
		msg = unknownError
	}
	return &msl.ApplicationError{Message: msg}
}
