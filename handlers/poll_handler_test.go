package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"governance-voting-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePoll(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	pollData := gin.H{
		"title":          "Annual budget vote",
		"description":    "Approve the proposed annual budget",
		"poll_type":      "binding",
		"is_anonymous":   true,
		"notify_members": true,
		"start_at":       time.Now().Add(-time.Minute).Format(time.RFC3339),
		"end_at":         time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"options": []gin.H{
			{"text": "Approve", "order_index": 0},
			{"text": "Reject", "order_index": 1},
		},
	}
	jsonData, _ := json.Marshal(pollData)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/polls", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var createdPoll models.Poll
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createdPoll))
	assert.NotZero(t, createdPoll.ID)
	assert.Equal(t, "Annual budget vote", createdPoll.Title)
	assert.Equal(t, models.PollTypeBinding, createdPoll.PollType)
	assert.True(t, createdPoll.IsAnonymous)
	assert.True(t, createdPoll.NotifyMembers)
	require.Len(t, createdPoll.Options, 2)
	assert.Equal(t, "Approve", createdPoll.Options[0].Text)
	assert.Equal(t, createdPoll.ID, createdPoll.Options[0].PollID)
}

func TestCreatePollInvalidInput(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{
			name: "missing title",
			body: gin.H{
				"start_at": time.Now().Format(time.RFC3339),
				"end_at":   time.Now().Add(time.Hour).Format(time.RFC3339),
				"options":  []gin.H{{"text": "A"}, {"text": "B"}},
			},
		},
		{
			name: "too few options",
			body: gin.H{
				"title":    "Q?",
				"start_at": time.Now().Format(time.RFC3339),
				"end_at":   time.Now().Add(time.Hour).Format(time.RFC3339),
				"options":  []gin.H{{"text": "A"}},
			},
		},
		{
			name: "end before start",
			body: gin.H{
				"title":    "Q?",
				"start_at": time.Now().Add(time.Hour).Format(time.RFC3339),
				"end_at":   time.Now().Format(time.RFC3339),
				"options":  []gin.H{{"text": "A"}, {"text": "B"}},
			},
		},
		{
			name: "invalid poll type",
			body: gin.H{
				"title":     "Q?",
				"poll_type": "decree",
				"start_at":  time.Now().Format(time.RFC3339),
				"end_at":    time.Now().Add(time.Hour).Format(time.RFC3339),
				"options":   []gin.H{{"text": "A"}, {"text": "B"}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jsonData, _ := json.Marshal(tc.body)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/polls", bytes.NewBuffer(jsonData))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetPolls(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	CreateActivePoll(t, db, false)
	CreateActivePoll(t, db, true)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/polls", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var polls []models.Poll
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polls))
	assert.Len(t, polls, 2)
}

func TestGetPoll(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	poll := CreateActivePoll(t, db, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/polls/%d", poll.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, poll.Title, body["title"])
	assert.Equal(t, "active", body["status"])
	assert.Len(t, body["options"], 3)
}

func TestGetPollNotFound(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/polls/9999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSystemStatus(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var info SystemInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "ok", info.Status)
	assert.Equal(t, "ok", info.DBStatus)
}
