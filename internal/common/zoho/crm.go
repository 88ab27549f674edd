// Package zoho pushes converted customers into Zoho CRM for post-purchase
// follow-up.
package zoho

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apphttp "stream-monetization-workers/internal/common/http"
)

const DefaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	http *apphttp.Client
}

type Contact struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"Email"`
	FirstName   string `json:"First_Name,omitempty"`
	LastName    string `json:"Last_Name"`
	Phone       string `json:"Phone,omitempty"`
	Source      string `json:"Lead_Source,omitempty"`
	Description string `json:"Description,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Action  string `json:"action"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(baseURL, oauthToken string, timeout time.Duration) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CRMClient{
		http: apphttp.NewClient(baseURL, timeout).
			WithHeader("Authorization", "Zoho-oauthtoken "+oauthToken),
	}
}

// UpsertContact creates the contact or updates the one with the same email,
// returning the CRM record id.
func (c *CRMClient) UpsertContact(ctx context.Context, contact *Contact) (string, error) {
	if contact.Email == "" {
		return "", fmt.Errorf("zoho: contact email is required")
	}
	if contact.LastName == "" {
		// Last_Name is mandatory for Zoho contacts.
		contact.LastName = contact.Email
	}

	payload := map[string]interface{}{
		"data":                   []Contact{*contact},
		"duplicate_check_fields": []string{"Email"},
	}

	var resp upsertResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, "/Contacts/upsert", payload, &resp); err != nil {
		return "", fmt.Errorf("zoho: upsert contact: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("zoho: no data in response")
	}
	if resp.Data[0].Status != "success" {
		return "", fmt.Errorf("zoho: upsert contact failed: %s", resp.Data[0].Message)
	}
	return resp.Data[0].Details.ID, nil
}
