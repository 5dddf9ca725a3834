package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"
	"github.com/google/uuid"

	"github.com/desertthunder/ytmirror/internal/shared"
)

const (
	DefaultBaseURL = "https://www.youtube.com"

	tokenPath = "/api/lounge/pairing/get_lounge_token_batch"
	bindPath  = "/api/lounge/bc/bind"

	loungeIDHeader = "X-YouTube-LoungeId-Token"

	actionSetPlaylist = "setPlaylist"
	actionAddVideo    = "addVideo"
)

var (
	sidExpr        = regexp2.MustCompile(`\["c","(?<sid>.*?)",`, 0)
	gsessionExpr   = regexp2.MustCompile(`\["S","(?<gsession>.*?)"\]`, 0)
	errSessionGone = errors.New("lounge session expired")
)

// LoungeOpts configures a [LoungeSession]. Only ScreenID is required.
type LoungeOpts struct {
	ScreenID   string
	DeviceName string
	BaseURL    string
	Client     *http.Client
	Logger     *log.Logger
}

// LoungeSession is a [Session] speaking the lounge bind protocol to a paired screen.
//
// The session binds lazily on first use and rebinds once when the server forgets it.
type LoungeSession struct {
	screenID   string
	deviceName string
	deviceID   string
	baseURL    string
	client     *http.Client
	logger     *log.Logger

	mu         sync.Mutex
	token      string
	sid        string
	gsessionID string
	rid        int
	ofs        int
}

// NewLoungeSession creates a session for the screen; nothing is sent until the first call.
func NewLoungeSession(opts LoungeOpts) (*LoungeSession, error) {
	if opts.ScreenID == "" {
		return nil, fmt.Errorf("%w: cast screen_id is not configured", shared.ErrMissingConfig)
	}
	if opts.DeviceName == "" {
		opts.DeviceName = "ytmirror"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &LoungeSession{
		screenID:   opts.ScreenID,
		deviceName: opts.DeviceName,
		deviceID:   strings.ReplaceAll(uuid.NewString(), "-", "")[:26],
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     opts.Client,
		logger:     opts.Logger,
	}, nil
}

// PlayVideo implements [Session].
func (s *LoungeSession) PlayVideo(ctx context.Context, videoID string) error {
	return s.action(ctx, actionSetPlaylist, map[string]string{
		"_videoId":      videoID,
		"_listId":       "",
		"_currentTime":  "0",
		"_currentIndex": "-1",
		"_audioOnly":    "false",
	})
}

// AddToQueue implements [Session].
func (s *LoungeSession) AddToQueue(ctx context.Context, videoID string) error {
	return s.action(ctx, actionAddVideo, map[string]string{"_videoId": videoID})
}

// Snapshot implements [Session].
func (s *LoungeSession) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	err := s.withRebind(ctx, func() error {
		params := s.sessionParams()
		params.Set("RID", "rpc")
		params.Set("TYPE", "xmlhttp")
		params.Set("t", "1")
		params.Set("AID", "5")
		params.Set("CI", "1")
		params.Set("v", "2")
		s.addDeviceParams(params)

		var err error
		body, err = s.post(ctx, bindPath, params, url.Values{})
		return err
	})
	if err != nil {
		return nil, err
	}

	return ParseSnapshot(body)
}

// Close forgets the bound session; the next call binds again.
func (s *LoungeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *LoungeSession) action(ctx context.Context, name string, args map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRebind(ctx, func() error {
		params := s.sessionParams()
		params.Set("RID", strconv.Itoa(s.rid))

		form := url.Values{}
		form.Set("count", "1")
		form.Set("ofs", strconv.Itoa(s.ofs))
		form.Set("req0__sc", name)
		for k, v := range args {
			form.Set("req0_"+k, v)
		}

		if _, err := s.post(ctx, bindPath, params, form); err != nil {
			return err
		}

		s.rid++
		s.ofs++
		s.logger.Debug("lounge action", "action", name, "video", args["_videoId"])
		return nil
	})
}

// withRebind binds when needed and retries fn once after the server drops the session.
func (s *LoungeSession) withRebind(ctx context.Context, fn func() error) error {
	if err := s.ensureBound(ctx); err != nil {
		return err
	}

	err := fn()
	if !errors.Is(err, errSessionGone) {
		return err
	}

	s.logger.Warn("lounge session expired, binding again", "screen", s.screenID)
	s.reset()
	if err := s.ensureBound(ctx); err != nil {
		return err
	}
	return fn()
}

func (s *LoungeSession) ensureBound(ctx context.Context) error {
	if s.sid != "" {
		return nil
	}

	if s.token == "" {
		token, err := s.loungeToken(ctx)
		if err != nil {
			return err
		}
		s.token = token
	}

	return s.bind(ctx)
}

func (s *LoungeSession) loungeToken(ctx context.Context) (string, error) {
	form := url.Values{"screen_ids": {s.screenID}}
	body, err := s.post(ctx, tokenPath, nil, form)
	if err != nil {
		return "", fmt.Errorf("failed to get lounge token: %w", err)
	}

	var resp struct {
		Screens []struct {
			ScreenID    string `json:"screenId"`
			LoungeToken string `json:"loungeToken"`
		} `json:"screens"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", fmt.Errorf("failed to decode lounge token: %w", err)
	}
	if len(resp.Screens) == 0 || resp.Screens[0].LoungeToken == "" {
		return "", fmt.Errorf("%w: no lounge token for screen %s", shared.ErrAuthFailed, s.screenID)
	}
	return resp.Screens[0].LoungeToken, nil
}

func (s *LoungeSession) bind(ctx context.Context) error {
	s.rid = 0
	s.ofs = 0

	params := url.Values{}
	params.Set("RID", strconv.Itoa(s.rid))
	params.Set("VER", "8")
	params.Set("CVER", "1")
	params.Set("loungeIdToken", s.token)
	s.addDeviceParams(params)

	body, err := s.post(ctx, bindPath, params, url.Values{"count": {"0"}})
	if err != nil {
		return fmt.Errorf("failed to bind lounge session: %w", err)
	}

	sid, err := match(sidExpr, "sid", body)
	if err != nil {
		return err
	}
	gsession, err := match(gsessionExpr, "gsession", body)
	if err != nil {
		return err
	}

	s.sid = sid
	s.gsessionID = gsession
	s.rid++
	s.logger.Info("bound lounge session", "screen", s.screenID)
	return nil
}

func (s *LoungeSession) reset() {
	s.sid = ""
	s.gsessionID = ""
	s.rid = 0
	s.ofs = 0
}

func (s *LoungeSession) sessionParams() url.Values {
	params := url.Values{}
	params.Set("SID", s.sid)
	params.Set("gsessionid", s.gsessionID)
	params.Set("VER", "8")
	params.Set("CVER", "1")
	params.Set("loungeIdToken", s.token)
	return params
}

func (s *LoungeSession) addDeviceParams(params url.Values) {
	params.Set("device", "REMOTE_CONTROL")
	params.Set("id", s.deviceID)
	params.Set("name", s.deviceName)
	params.Set("mdx-version", "3")
	params.Set("pairing_type", "cast")
	params.Set("app", "android-phone-13.14.55")
}

func (s *LoungeSession) post(ctx context.Context, path string, params, form url.Values) (string, error) {
	endpoint := s.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Origin", s.baseURL+"/")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.token != "" {
		req.Header.Set(loungeIDHeader, s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return string(body), nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusBadRequest:
		if s.sid != "" {
			return "", errSessionGone
		}
		fallthrough
	default:
		return "", fmt.Errorf("%w: lounge returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
}

func match(re *regexp2.Regexp, group, body string) (string, error) {
	m, err := re.FindStringMatch(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse bind response: %w", err)
	}
	if m == nil {
		return "", fmt.Errorf("%w: bind response has no %s", shared.ErrSessionClosed, group)
	}
	return m.GroupByName(group).String(), nil
}

// ParseSnapshot decodes a bind channel response: a sequence of length-prefixed chunks,
// each an array of [index, [event, args...]] entries. The last nowPlaying event wins.
func ParseSnapshot(body string) (*Snapshot, error) {
	snap := &Snapshot{}
	dec := json.NewDecoder(strings.NewReader(body))

	for {
		var chunk json.RawMessage
		err := dec.Decode(&chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode lounge response: %w", err)
		}
		if len(chunk) == 0 || chunk[0] != '[' {
			continue
		}

		var entries [][]json.RawMessage
		if err := json.Unmarshal(chunk, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode lounge chunk: %w", err)
		}

		for _, entry := range entries {
			ev, ok := parseEvent(entry)
			if !ok {
				continue
			}
			snap.Events = append(snap.Events, ev)

			if ev.Name == "nowPlaying" && len(entry) == 2 {
				if np := parseNowPlaying(entry[1]); np != nil {
					snap.NowPlaying = np
				}
			}
		}
	}
	return snap, nil
}

func parseEvent(entry []json.RawMessage) (Event, bool) {
	if len(entry) != 2 {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal(entry[0], &ev.Index); err != nil {
		return Event{}, false
	}

	var payload []any
	if err := json.Unmarshal(entry[1], &payload); err != nil || len(payload) == 0 {
		return Event{}, false
	}
	name, ok := payload[0].(string)
	if !ok {
		return Event{}, false
	}
	ev.Name = name
	ev.Args = payload[1:]
	return ev, true
}

func parseNowPlaying(raw json.RawMessage) *NowPlaying {
	var payload []json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload) < 2 {
		return nil
	}

	var np NowPlaying
	if err := json.Unmarshal(payload[1], &np); err != nil || np.VideoID == "" {
		return nil
	}
	return &np
}
