package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mpaulsen/keepup/internal/model"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// TokenSource supplies a bearer credential for each request. Token
// acquisition and refresh live behind this interface; the client treats
// the credential as opaque.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the provider's calendar API: paginated delta reads,
// series-master lookups, and the sendMail endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	prefZone   string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBaseURL(u string) Option {
	return func(cl *Client) {
		cl.baseURL = u
	}
}

// NewClient builds a client. prefZone, when set, is sent as the preferred
// response time zone so event times arrive pre-localized.
func NewClient(tokens TokenSource, prefZone string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		tokens:     tokens,
		prefZone:   prefZone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RawRecipient is a provider attendee or organizer entry.
type RawRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	} `json:"emailAddress"`
}

// RawDateTime is a provider event boundary: either a dateTime with a zone
// label, or a bare date for all-day events.
type RawDateTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	TimeZone string `json:"timeZone"`
}

// RawEvent is one event payload exactly as the provider shapes it.
type RawEvent struct {
	ID             string      `json:"id"`
	Subject        string      `json:"subject"`
	Start          RawDateTime `json:"start"`
	End            RawDateTime `json:"end"`
	IsAllDay       bool        `json:"isAllDay"`
	SeriesMasterID string      `json:"seriesMasterId"`
	Location       struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Organizer RawRecipient   `json:"organizer"`
	Attendees []RawRecipient `json:"attendees"`
}

// OrganizerEmail returns the organizer address, which may be empty.
func (e RawEvent) OrganizerEmail() string {
	return e.Organizer.EmailAddress.Address
}

// Page is one response of the paginated delta stream. Exactly one of
// NextLink (more pages in this pass) and DeltaLink (pass complete, resume
// token) is normally set; neither means the stream ended without a
// resumable cursor.
type Page struct {
	Events    []RawEvent `json:"value"`
	NextLink  string     `json:"@odata.nextLink"`
	DeltaLink string     `json:"@odata.deltaLink"`
}

const selectFields = "subject,start,end,location,attendees,isAllDay,organizer,seriesMasterId"

// BootstrapURL builds the first request of a full sync over the given
// historical window. Subsequent requests in a pass follow NextLink, and
// incremental passes start from the stored DeltaLink instead.
func (c *Client) BootstrapURL(from, to time.Time) string {
	q := url.Values{}
	q.Set("$select", selectFields)
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	return c.baseURL + "/me/calendarView/delta?" + q.Encode()
}

// FetchPage performs one page request. Any transport failure, timeout, or
// non-2xx status is returned as an error; the caller aborts the pass.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	if c.prefZone != "" {
		req.Header.Set("Prefer", fmt.Sprintf("outlook.timezone=%q", c.prefZone))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("page request returned status %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}

// Master is the subset of a series-master event that recurring instances
// inherit when they carry no subject or attendees of their own.
type Master struct {
	Subject   string
	Attendees []model.Attendee
}

// SeriesMaster fetches the subject and attendee list of the series master
// backing a recurring instance.
func (c *Client) SeriesMaster(ctx context.Context, masterID string) (*Master, error) {
	u := fmt.Sprintf("%s/me/events/%s?%s", c.baseURL, url.PathEscape(masterID), url.Values{"$select": {"subject,attendees"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build master request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("master request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("master request returned status %d", resp.StatusCode)
	}

	var body struct {
		Subject   string         `json:"subject"`
		Attendees []RawRecipient `json:"attendees"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode master: %w", err)
	}
	return &Master{
		Subject:   strings.TrimSpace(body.Subject),
		Attendees: adaptAttendees(body.Attendees),
	}, nil
}

type mailMessage struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []RawRecipient `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems string `json:"saveToSentItems"`
}

// SendMail posts an HTML message through the provider's sendMail
// endpoint.
func (c *Client) SendMail(ctx context.Context, subject, htmlBody, to string) error {
	var msg mailMessage
	msg.Message.Subject = subject
	msg.Message.Body.ContentType = "HTML"
	msg.Message.Body.Content = htmlBody
	var rcpt RawRecipient
	rcpt.EmailAddress.Address = to
	msg.Message.ToRecipients = []RawRecipient{rcpt}
	msg.SaveToSentItems = "true"

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/sendMail", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendMail returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}
