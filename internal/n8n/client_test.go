package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "lead-search", zerolog.Nop()), server
}

func TestSearchLeadsEmptyBodyMeansZeroResults(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	leads, err := client.SearchLeads(context.Background(), SearchConfig{City: "İstanbul", Sector: "restoran"})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSearchLeadsPayloadAndParsing(t *testing.T) {
	var payload map[string]any
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lead-search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"Company Name": "Kardeşler Lokantası", "Company Category": "Restoran", "Email": "info@kardesler.com.tr", "Phone Number": "+905321112233", "Website": "https://kardesler.com.tr"},
			{"title": "Moda Kuaför", "categoryName": "Kuaför", "phone": "+905357778899"}
		]`))
	}))
	defer server.Close()

	leads, err := client.SearchLeads(context.Background(), SearchConfig{
		City:     "İstanbul",
		District: "Kadıköy",
		Sector:   "restoran",
		Limit:    10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Kadıköy, İstanbul", payload["Lokayon"])
	assert.Equal(t, "restoran", payload["Anahtar Kelime"])
	assert.Equal(t, "restoran Kadıköy İstanbul", payload["GoogleQuery"])
	assert.Equal(t, "İstanbul", payload["Sehir"])
	assert.Equal(t, "Kadıköy", payload["Semt"])
	assert.Equal(t, float64(10), payload["Taranacak İşletme Sayısı"])
	assert.Equal(t, true, payload["scrapeContacts"])

	require.Len(t, leads, 2)

	assert.Equal(t, "Kardeşler Lokantası", leads[0].Name)
	assert.Equal(t, "Restoran", leads[0].Company)
	assert.Equal(t, "+905321112233", leads[0].Phone)
	assert.Equal(t, "new", leads[0].Status)
	assert.Equal(t, 100, leads[0].Score, "email, phone and website max out the score")

	// Alternate field scheme from the scraper.
	assert.Equal(t, "Moda Kuaför", leads[1].Name)
	assert.Equal(t, "Kuaför", leads[1].Company)
	assert.Equal(t, "+905357778899", leads[1].Phone)
	assert.Equal(t, 70, leads[1].Score, "base 50 plus phone")
}

func TestSearchLeadsDataWrapper(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"Company Name": "Yıldız Emlak", "Company Category": "Emlak"}]}`))
	}))
	defer server.Close()

	leads, err := client.SearchLeads(context.Background(), SearchConfig{City: "Ankara", Sector: "emlak"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Yıldız Emlak", leads[0].Name)
	assert.Equal(t, 50, leads[0].Score, "no contact details leaves the base score")
}

func TestSearchLeadsSingleObject(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "Tekno Bilgisayar", "categoryName": "Elektronik", "email": "satis@teknobilgisayar.com"}`))
	}))
	defer server.Close()

	leads, err := client.SearchLeads(context.Background(), SearchConfig{City: "İzmir", Sector: "elektronik"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Tekno Bilgisayar", leads[0].Name)
	assert.Equal(t, 70, leads[0].Score)
}

func TestSearchLeadsErrorStatus(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow not registered", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.SearchLeads(context.Background(), SearchConfig{City: "İstanbul", Sector: "restoran"})
	assert.Error(t, err)
}

func TestGenerateMessageUsesWorkflowText(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whatsapp-ai-preview", r.URL.Path)
		w.Write([]byte(`{"output": "Merhaba! Size özel bir teklifimiz var."}`))
	}))
	defer server.Close()

	msg := client.GenerateMessage(context.Background(), "Kardeşler Lokantası", "dijital menü")
	assert.Equal(t, "Merhaba! Size özel bir teklifimiz var.", msg)
}

func TestGenerateMessageFallsBackOnFailure(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	msg := client.GenerateMessage(context.Background(), "Kardeşler Lokantası", "dijital menü")
	assert.Equal(t, "Merhaba Kardeşler Lokantası! 🚀 LUERA olarak size özel dijital menü sunmak istiyoruz.", msg)
}

func TestGenerateMessageFallsBackOnEmptyResponse(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	msg := client.GenerateMessage(context.Background(), "Moda Kuaför", "randevu sistemi")
	assert.Contains(t, msg, "Moda Kuaför")
	assert.Contains(t, msg, "randevu sistemi")
}

func TestSendBulkPayloadAndResult(t *testing.T) {
	var payload struct {
		Leads []BulkMessage `json:"leads"`
	}
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whatsapp-bulk-v19", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"success": true, "message": "queued", "totalSent": 2}`))
	}))
	defer server.Close()

	result, err := client.SendBulk(context.Background(), []BulkMessage{
		{Phone: "+905321112233", Message: "merhaba", CompanyName: "Kardeşler Lokantası", CompanyCategory: "Restoran"},
		{Phone: "+905357778899", Message: "selam", CompanyName: "Moda Kuaför", CompanyCategory: "Kuaför"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalSent)

	require.Len(t, payload.Leads, 2)
	assert.Equal(t, "+905321112233", payload.Leads[0].Phone)
	assert.Equal(t, "Kardeşler Lokantası", payload.Leads[0].CompanyName)
}

func TestSendBulkRejection(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "instance offline"}`))
	}))
	defer server.Close()

	result, err := client.SendBulk(context.Background(), []BulkMessage{{Phone: "+905321112233"}})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "instance offline", result.Message)
}

func TestStartSessionPayload(t *testing.T) {
	var payload map[string]string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whatsapp-start", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	require.NoError(t, client.StartSession(context.Background(), "testwp"))
	assert.Equal(t, "testwp", payload["instanceName"])
	assert.Equal(t, "start_session", payload["action"])
}
