package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadgen-dashboard/internal/models"

	"github.com/rs/zerolog"
)

// Client calls the n8n webhook workflows that do the heavy lifting:
// lead scraping, AI message generation, bulk WhatsApp delivery and
// session pairing. All of them are opaque collaborators; only the
// request/response contracts below are relied on.
type Client struct {
	BaseURL    string
	SearchPath string
	HTTPClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL, searchPath string, logger zerolog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		SearchPath: searchPath,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		log:        logger.With().Str("component", "n8n").Logger(),
	}
}

// SearchConfig describes one lead search run.
type SearchConfig struct {
	City     string `json:"city"`
	District string `json:"district"`
	Sector   string `json:"sector"`
	Limit    int    `json:"limit"`
}

// searchPayload is the wire format the scraping workflow expects.
type searchPayload struct {
	Location       string `json:"Lokayon"`
	Keyword        string `json:"Anahtar Kelime"`
	GoogleQuery    string `json:"GoogleQuery"`
	City           string `json:"Sehir"`
	District       string `json:"Semt"`
	Sector         string `json:"Sektor"`
	BusinessCap    int    `json:"Taranacak İşletme Sayısı"`
	ScrapeContacts bool   `json:"scrapeContacts"`
}

// rawLead tolerates the two field naming schemes the scraper emits.
type rawLead struct {
	CompanyName  string `json:"Company Name"`
	Title        string `json:"title"`
	Category     string `json:"Company Category"`
	CategoryName string `json:"categoryName"`
	Email        string `json:"Email"`
	EmailAlt     string `json:"email"`
	Phone        string `json:"Phone Number"`
	PhoneAlt     string `json:"phone"`
	Website      string `json:"Website"`
	WebsiteAlt   string `json:"website"`
}

// SearchLeads triggers the scraping workflow and maps its response into
// Lead records. An empty response body means zero results, not an error.
func (c *Client) SearchLeads(ctx context.Context, cfg SearchConfig) ([]models.Lead, error) {
	location := cfg.City
	if cfg.District != "" {
		location = cfg.District + ", " + cfg.City
	}
	query := cfg.Sector
	if cfg.District != "" {
		query += " " + cfg.District
	}
	if cfg.City != "" {
		query += " " + cfg.City
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 30
	}

	payload := searchPayload{
		Location:       location,
		Keyword:        cfg.Sector,
		GoogleQuery:    query,
		City:           cfg.City,
		District:       cfg.District,
		Sector:         cfg.Sector,
		BusinessCap:    limit,
		ScrapeContacts: true,
	}

	body, err := c.sendRequest(ctx, c.BaseURL+"/"+c.SearchPath, payload)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.log.Warn().Msg("search returned empty body, treating as zero results")
		return []models.Lead{}, nil
	}

	return parseSearchResponse(body)
}

func parseSearchResponse(body []byte) ([]models.Lead, error) {
	var list []rawLead
	if err := json.Unmarshal(body, &list); err == nil {
		return mapRawLeads(list), nil
	}

	// Single object: either a {data: [...]} wrapper or one lead.
	var wrapper struct {
		Data []rawLead `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Data) > 0 {
		return mapRawLeads(wrapper.Data), nil
	}

	var single rawLead
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("unexpected search response: %s", truncate(body, 100))
	}
	if single.CompanyName == "" && single.Title == "" {
		return []models.Lead{}, nil
	}
	return mapRawLeads([]rawLead{single}), nil
}

func mapRawLeads(raw []rawLead) []models.Lead {
	leads := make([]models.Lead, 0, len(raw))
	for _, r := range raw {
		name := firstNonEmpty(r.CompanyName, r.Title, "İsimsiz Şirket")
		company := firstNonEmpty(r.Category, r.CategoryName, "Bilinmiyor")
		lead := models.Lead{
			Name:    name,
			Company: company,
			Email:   firstNonEmpty(r.Email, r.EmailAlt),
			Phone:   firstNonEmpty(r.Phone, r.PhoneAlt),
			Website: firstNonEmpty(r.Website, r.WebsiteAlt),
			Status:  "new",
			Tags:    company,
			Score:   leadScore(r),
		}
		leads = append(leads, lead)
	}
	return leads
}

func leadScore(r rawLead) int {
	score := 50
	if firstNonEmpty(r.Email, r.EmailAlt) != "" {
		score += 20
	}
	if firstNonEmpty(r.Phone, r.PhoneAlt) != "" {
		score += 20
	}
	if firstNonEmpty(r.Website, r.WebsiteAlt) != "" {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// GenerateMessage asks the AI preview workflow for an outreach message.
// Any failure, including an unparseable or empty response, falls back to
// the deterministic template so callers never see an error.
func (c *Client) GenerateMessage(ctx context.Context, companyName, offerType string) string {
	fallback := fmt.Sprintf("Merhaba %s! 🚀 LUERA olarak size özel %s sunmak istiyoruz.", companyName, offerType)

	payload := map[string]string{
		"companyName": companyName,
		"offerType":   offerType,
	}
	body, err := c.sendRequest(ctx, c.BaseURL+"/whatsapp-ai-preview", payload)
	if err != nil {
		c.log.Warn().Err(err).Str("company", companyName).Msg("AI generation failed, using fallback template")
		return fallback
	}

	var resp struct {
		Message string `json:"message"`
		Text    string `json:"text"`
		Output  string `json:"output"`
		Result  string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn().Err(err).Msg("AI response was not JSON, using fallback template")
		return fallback
	}

	if msg := firstNonEmpty(resp.Message, resp.Text, resp.Output, resp.Result); msg != "" {
		return msg
	}
	return fallback
}

// BulkMessage is one entry in a bulk send request.
type BulkMessage struct {
	Phone           string `json:"phone"`
	Message         string `json:"message"`
	CompanyName     string `json:"companyName"`
	CompanyCategory string `json:"companyCategory"`
}

// BulkResult is the workflow's acknowledgment. The workflow itself paces
// individual deliveries; from here the batch succeeds or fails as a whole.
type BulkResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	TotalSent int    `json:"totalSent"`
}

// SendBulk hands the whole pending batch to the delivery workflow in a
// single call.
func (c *Client) SendBulk(ctx context.Context, messages []BulkMessage) (*BulkResult, error) {
	payload := map[string]any{"leads": messages}
	body, err := c.sendRequest(ctx, c.BaseURL+"/whatsapp-bulk-v19", payload)
	if err != nil {
		return nil, err
	}

	var result BulkResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unexpected bulk send response: %s", truncate(body, 100))
	}
	if !result.Success {
		return &result, fmt.Errorf("bulk send rejected: %s", result.Message)
	}
	return &result, nil
}

// StartSession asks the session workflow to create or reconnect a
// WhatsApp instance. The pairing image arrives later through the store,
// not in this response.
func (c *Client) StartSession(ctx context.Context, instanceName string) error {
	payload := map[string]string{
		"instanceName": instanceName,
		"action":       "start_session",
	}
	_, err := c.sendRequest(ctx, c.BaseURL+"/whatsapp-start", payload)
	return err
}

func (c *Client) sendRequest(ctx context.Context, url string, body any) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("webhook error: %s - %s", resp.Status, truncate(respBody, 200))
	}

	return respBody, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
