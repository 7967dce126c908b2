package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const DefaultGraphAPIURL = "https://graph.facebook.com/v17.0"

// RelayResponse is the raw answer of the Cloud API to a relayed request.
type RelayResponse struct {
	StatusCode int
	Body       []byte
}

type GraphAPI interface {
	// SendMessage relays a send-message body as is, with the caller's headers.
	SendMessage(ctx context.Context, businessNumberID string, header http.Header, body []byte) (*RelayResponse, error)
	// ConversationsByBusinessNumber sums conversations per digits-only phone number.
	ConversationsByBusinessNumber(ctx context.Context, accessToken, wabaID string, start, end time.Time) (map[string]int, error)
	// BusinessNumbersByID maps phone number ids to digits-only display numbers.
	BusinessNumbersByID(ctx context.Context, accessToken, wabaID string) (map[string]string, error)
	CreateSubscriberList(ctx context.Context, params SubscriberListParams) (json.RawMessage, error)
}

type SubscriberListParams struct {
	AccessToken      string
	BusinessNumberID string
	AdAccountID      string
	Name             string
}

// GraphAPIError is returned when the Graph API answers with a non-2xx status.
type GraphAPIError struct {
	StatusCode int
	Body       string
}

func (e *GraphAPIError) Error() string {
	return fmt.Sprintf("graph api returned %d: %s", e.StatusCode, e.Body)
}

type GraphClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGraphClient(baseURL string, httpClient *http.Client) GraphAPI {
	if baseURL == "" {
		baseURL = DefaultGraphAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &GraphClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

var relayedHeaders = []string{"Authorization", "Content-Type"}

func (c *GraphClient) SendMessage(ctx context.Context, businessNumberID string, header http.Header, body []byte) (*RelayResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, url.PathEscape(businessNumberID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create relay request: %w", err)
	}
	for _, name := range relayedHeaders {
		if v := header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to relay message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}

	return &RelayResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *GraphClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *GraphClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GraphAPIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var nonDigits = regexp.MustCompile(`\D`)

// DigitsOnly strips everything but digits from a phone number.
func DigitsOnly(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

type conversationAnalytics struct {
	ConversationAnalytics struct {
		Data []struct {
			DataPoints []struct {
				PhoneNumber  string `json:"phone_number"`
				Conversation int    `json:"conversation"`
			} `json:"data_points"`
		} `json:"data"`
	} `json:"conversation_analytics"`
}

func (c *GraphClient) ConversationsByBusinessNumber(ctx context.Context, accessToken, wabaID string, start, end time.Time) (map[string]int, error) {
	query := url.Values{}
	query.Set("access_token", accessToken)
	query.Set("fields", fmt.Sprintf(`conversation_analytics.start(%d).end(%d).granularity(DAILY).dimensions(["PHONE"])`,
		start.Unix(), end.Unix()))

	var analytics conversationAnalytics
	if err := c.get(ctx, "/"+url.PathEscape(wabaID), query, &analytics); err != nil {
		return nil, fmt.Errorf("failed to fetch conversation analytics: %w", err)
	}

	conversations := map[string]int{}
	if len(analytics.ConversationAnalytics.Data) == 0 {
		return conversations, nil
	}
	for _, point := range analytics.ConversationAnalytics.Data[0].DataPoints {
		conversations[DigitsOnly(point.PhoneNumber)] += point.Conversation
	}
	return conversations, nil
}

type phoneNumbersResponse struct {
	Data []struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
	} `json:"data"`
}

func (c *GraphClient) BusinessNumbersByID(ctx context.Context, accessToken, wabaID string) (map[string]string, error) {
	query := url.Values{}
	query.Set("access_token", accessToken)

	var numbers phoneNumbersResponse
	if err := c.get(ctx, "/"+url.PathEscape(wabaID)+"/phone_numbers", query, &numbers); err != nil {
		return nil, fmt.Errorf("failed to fetch business numbers: %w", err)
	}

	byID := make(map[string]string, len(numbers.Data))
	for _, n := range numbers.Data {
		byID[n.ID] = DigitsOnly(n.DisplayPhoneNumber)
	}
	return byID, nil
}

func (c *GraphClient) CreateSubscriberList(ctx context.Context, params SubscriberListParams) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{
		"access_token":                       params.AccessToken,
		"subtype":                            "SUBSCRIBER_LIST",
		"whats_app_business_phone_number_id": params.BusinessNumberID,
		"name":                               params.Name,
		"description":                        "A subscriber list created for audience rule " + params.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscriber list request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/act_%s/customaudiences", c.baseURL, url.PathEscape(params.AdAccountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var list json.RawMessage
	if err := c.do(req, &list); err != nil {
		return nil, fmt.Errorf("failed to create subscriber list: %w", err)
	}
	return list, nil
}
