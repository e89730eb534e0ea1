// Package twilio translates between Twilio's WhatsApp messaging API and the
// conversation engine. Inbound messages arrive as webhook form posts and are
// answered synchronously with TwiML; outbound officer notifications go
// through the REST Messages endpoint.
package twilio

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roadwatch/roadwatch/internal/chat"
)

const (
	apiBase        = "https://api.twilio.com/2010-04-01"
	defaultTimeout = 15 * time.Second
)

// Client is a minimal Twilio REST client scoped to sending WhatsApp
// messages. It also satisfies the report pipeline's Notifier contract.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string // sender address, e.g. "whatsapp:+14155238886"
	smsFrom    string // optional plain-SMS sender for fallback delivery
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	SMSFrom    string        // optional; enables the SMS fallback channel
	BaseURL    string        // overridable for tests
	Timeout    time.Duration // defaults to defaultTimeout
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.AccountSID == "" {
		return nil, fmt.Errorf("twilio: account sid is required")
	}
	if opts.AuthToken == "" {
		return nil, fmt.Errorf("twilio: auth token is required")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("twilio: from address is required")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = apiBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		from:       opts.From,
		smsFrom:    opts.SMSFrom,
	}, nil
}

// Send delivers a message to a WhatsApp address via the Messages endpoint.
func (c *Client) Send(ctx context.Context, to, body string) error {
	return c.send(ctx, c.from, to, body)
}

func (c *Client) send(ctx context.Context, from, to, body string) error {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("twilio: send to %s: %s", to, apiError(resp))
	}
	return nil
}

// Notify implements the report pipeline's officer notification contract.
// Officer phone numbers are stored bare and addressed over WhatsApp.
func (c *Client) Notify(ctx context.Context, phone, body string) error {
	return c.Send(ctx, whatsAppAddress(phone), body)
}

// NotifySMS delivers a message over plain SMS, addressed by bare phone
// number. This is the fallback channel when a WhatsApp delivery fails,
// and it requires an SMS-capable sender number.
func (c *Client) NotifySMS(ctx context.Context, phone, body string) error {
	if c.smsFrom == "" {
		return fmt.Errorf("twilio: sms fallback: no sms sender configured")
	}
	return c.send(ctx, c.smsFrom, strings.TrimPrefix(phone, "whatsapp:"), body)
}

// whatsAppAddress normalizes a phone number to a Twilio WhatsApp address.
func whatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// apiError extracts the message from a Twilio error response body.
func apiError(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.Status
	}
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s (code %d: %s)", resp.Status, body.Code, body.Message)
}

// ParseInbound translates a Twilio webhook form post into an engine message.
// The MessageSid doubles as the delivery id for replay protection.
func ParseInbound(r *http.Request) (chat.InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return chat.InboundMessage{}, fmt.Errorf("twilio: parse webhook form: %w", err)
	}

	from := r.PostFormValue("From")
	if from == "" {
		return chat.InboundMessage{}, fmt.Errorf("twilio: webhook missing From")
	}

	msg := chat.InboundMessage{
		Platform:   "whatsapp",
		DeliveryID: r.PostFormValue("MessageSid"),
		UserHandle: from,
		UserName:   r.PostFormValue("ProfileName"),
		Text:       r.PostFormValue("Body"),
		Address:    r.PostFormValue("Address"),
		Timestamp:  time.Now(),
	}

	if n, err := strconv.Atoi(r.PostFormValue("NumMedia")); err == nil && n > 0 {
		msg.MediaCount = n
		msg.MediaURL = r.PostFormValue("MediaUrl0")
		msg.MediaContentType = r.PostFormValue("MediaContentType0")
	}

	// Location shares arrive as Latitude/Longitude form fields. Both must
	// parse or the payload is treated as absent.
	latRaw, lngRaw := r.PostFormValue("Latitude"), r.PostFormValue("Longitude")
	if latRaw != "" && lngRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lng, lngErr := strconv.ParseFloat(lngRaw, 64)
		if latErr == nil && lngErr == nil {
			msg.Latitude = &lat
			msg.Longitude = &lng
		}
	}

	return msg, nil
}

// twimlResponse is the synchronous webhook reply document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// TwiML renders the webhook reply for an outbound message. An empty text
// yields a bare acknowledgement.
func TwiML(out chat.OutboundMessage) string {
	doc, err := xml.Marshal(twimlResponse{Message: out.Text})
	if err != nil {
		// Marshalling a two-field struct cannot fail at runtime; keep the
		// webhook contract anyway.
		return "<Response></Response>"
	}
	return xml.Header + string(doc)
}
