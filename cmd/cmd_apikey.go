// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// resolveAPIKey finds the Google Maps key: the flag wins, then the
// environment, then ADC as a last resort.
func resolveAPIKey(ctx context.Context, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	if key := os.Getenv("GOOGLE_MAPS_API_KEY"); key != "" {
		return key, nil
	}

	log.Println("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

	key, err := getAPIKeyFromADC(ctx)
	if err != nil {
		return "", fmt.Errorf("no API key: set --api-key or GOOGLE_MAPS_API_KEY (ADC lookup failed: %w)", err)
	}

	log.Println("✅ Successfully retrieved Google Maps API Key via ADC")

	return key, nil
}

func getAPIKeyFromADC(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		return "", fmt.Errorf("no project ID in default credentials")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	const targetDisplayName = "Vereinsmatrix Geocoding Key"

	req := &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	}

	it := client.ListKeys(ctx, req)

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != targetDisplayName {
			continue
		}

		// ListKeys redacts the secret; GetKeyString retrieves it.
		getReq := &apikeyspb.GetKeyStringRequest{
			Name: key.Name,
		}

		resp, err := client.GetKeyString(ctx, getReq)
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key %q found but its secret is empty", targetDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name %q not found in project %s", targetDisplayName, projectID)
}
