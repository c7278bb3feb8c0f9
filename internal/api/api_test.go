package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/campaign"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/queue"
	"github.com/lalith-99/cdpcore/internal/repository/memory"
	"github.com/lalith-99/cdpcore/internal/rules"
	"github.com/lalith-99/cdpcore/internal/service"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	queue  *queue.InlineQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := memory.New()
	log := zap.NewNop()
	q := queue.NewInlineQueue(16)

	refresher := service.NewRefresher(db.Tags(), db.ProfileTags(), db.Lists(), log)
	ruleSvc := service.NewRuleService(db.Rules(), db.Tags(), db.ProfileTags(), rules.NewEngine(), refresher, log)
	identity := service.NewIdentityService(db.Profiles(), db.Events(), db.Lists(), db.ProfileTags(),
		service.NewBinder(db.Events(), log), ruleSvc, refresher, log)
	tags := service.NewTagService(db.Tags(), db.ProfileTags(), db.Lists(), db.Rules(), db.Profiles(), refresher, log)
	lists := service.NewListService(db.Lists(), db.Tags(), db.ProfileTags(), db.Profiles(), refresher, log)
	campaigns := service.NewCampaignService(db.Campaigns(), db.Lists(), q, log)

	r := gin.New()
	NewRouter(r, Handlers{
		Auth:      NewAuthHandler(db.Operators(), db.Companies(), testSecret, time.Hour, log),
		Track:     NewTrackHandler(identity, log),
		Profiles:  NewProfileHandler(identity, tags, log),
		Tags:      NewTagHandler(tags, log),
		Lists:     NewListHandler(lists, log),
		Campaigns: NewCampaignHandler(campaigns, nil, log),
		Rules:     NewRuleHandler(ruleSvc, log),
		Ops:       NewOpsHandler(nil, campaign.NewSweeper(db.Campaigns(), q, time.Minute, log), log),
	}, RouterConfig{JWTSecret: testSecret, InternalToken: "internal"})

	return &testServer{router: r, queue: q}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// signup registers a fresh company and returns its operator token and id.
func (s *testServer) signup(t *testing.T, email string) (string, uuid.UUID) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email":        email,
		"password":     "correct-horse",
		"display_name": "Ops",
		"company_name": "Acme",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[authResponse](t, w)
	return res.Token, uuid.MustParse(res.CompanyID)
}

func (s *testServer) identify(t *testing.T, company uuid.UUID, session, email string) *service.IdentifyResult {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/track/identify", "", gin.H{
		"company_id": company,
		"sessionId":  session,
		"email":      email,
		"name":       "Ada",
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
	res := decode[service.IdentifyResult](t, w)
	return &res
}

func (s *testServer) createTag(t *testing.T, token, name string) models.Tag {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/tags", token, gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Tag](t, w)
}

func TestAuth_SignupLoginMe(t *testing.T) {
	s := newTestServer(t)
	token, company := s.signup(t, "ops@acme.test")

	w := s.do(t, http.MethodPost, "/v1/auth/signup", "", gin.H{
		"email": "OPS@acme.test", "password": "whatever-long", "display_name": "x", "company_name": "y",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "ops@acme.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "ops@acme.test", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, company.String(), decode[authResponse](t, w).CompanyID)

	w = s.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.Operator](t, w)
	assert.Equal(t, "ops@acme.test", me.Email)
	assert.Equal(t, company, me.CompanyID)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/v1/tags", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTrackThenIdentifyBindsHistory(t *testing.T) {
	s := newTestServer(t)
	token, company := s.signup(t, "ops@acme.test")

	w := s.do(t, http.MethodPost, "/v1/track/events", "", gin.H{
		"company_id": company,
		"sessionId":  "sess-1",
		"events":     []gin.H{{"eventType": "page_view", "eventData": gin.H{"path": "/pricing"}}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[models.SessionEvents](t, w)
	assert.Nil(t, rec.UserID)

	res := s.identify(t, company, "sess-1", "Ada@Example.com")
	assert.True(t, res.Created)
	assert.EqualValues(t, 1, res.Bound)
	assert.Equal(t, "ada@example.com", res.Profile.Email)

	// Same email again updates rather than duplicates.
	again := s.identify(t, company, "sess-2", "ada@example.com")
	assert.False(t, again.Created)
	assert.Equal(t, res.Profile.ID, again.Profile.ID)

	w = s.do(t, http.MethodGet, "/v1/profiles/"+res.Profile.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[service.ProfileDetail](t, w)
	require.Len(t, detail.Events, 1)
	assert.Equal(t, "sess-1", detail.Events[0].SessionID)
}

func TestTrack_Validation(t *testing.T) {
	s := newTestServer(t)
	_, company := s.signup(t, "ops@acme.test")

	w := s.do(t, http.MethodPost, "/v1/track/events", "", gin.H{
		"company_id": company,
		"sessionId":  "sess-1",
		"events":     []gin.H{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/track/events", "", gin.H{
		"company_id": company,
		"sessionId":  "sess-1",
		"events":     []gin.H{{"eventData": gin.H{}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "eventType")
}

func TestTags_CRUDAndProfileAssociations(t *testing.T) {
	s := newTestServer(t)
	token, company := s.signup(t, "ops@acme.test")
	vip := s.createTag(t, token, "vip")

	w := s.do(t, http.MethodPost, "/v1/tags", token, gin.H{"name": "vip"})
	assert.Equal(t, http.StatusConflict, w.Code)

	p := s.identify(t, company, "sess-1", "ada@example.com").Profile
	path := "/v1/profiles/" + p.ID.String() + "/tags"

	w = s.do(t, http.MethodPost, path, token, gin.H{"tag_id": vip.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.AddedByManual, decode[models.ProfileTag](t, w).AddedBy)

	w = s.do(t, http.MethodPost, path, token, gin.H{"tag_id": vip.ID})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/tags/"+vip.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[models.Tag](t, w).ProfileCount)

	w = s.do(t, http.MethodGet, "/v1/tags/"+vip.ID.String()+"/profiles", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Profile](t, w), 1)

	w = s.do(t, http.MethodDelete, path+"/"+vip.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, path+"/"+vip.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/v1/tags/"+vip.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/v1/tags/"+vip.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTags_OtherCompanyLooksMissing(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := s.signup(t, "a@acme.test")
	tokenB, _ := s.signup(t, "b@other.test")
	tag := s.createTag(t, tokenA, "vip")

	w := s.do(t, http.MethodGet, "/v1/tags/"+tag.ID.String(), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidPathID(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ops@acme.test")

	w := s.do(t, http.MethodGet, "/v1/lists/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLists_MembershipFollowsTags(t *testing.T) {
	s := newTestServer(t)
	token, company := s.signup(t, "ops@acme.test")
	vip := s.createTag(t, token, "vip")
	buyer := s.createTag(t, token, "buyer")

	ada := s.identify(t, company, "s1", "ada@example.com").Profile
	bob := s.identify(t, company, "s2", "bob@example.com").Profile

	w := s.do(t, http.MethodPost, "/v1/tags/bulk", token, gin.H{
		"profile_ids": []uuid.UUID{ada.ID, bob.ID},
		"tag_ids":     []uuid.UUID{vip.ID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.do(t, http.MethodPost, "/v1/profiles/"+ada.ID.String()+"/tags", token, gin.H{"tag_id": buyer.ID})

	w = s.do(t, http.MethodPost, "/v1/lists", token, gin.H{
		"name":      "VIP buyers",
		"tags":      []uuid.UUID{vip.ID, buyer.ID},
		"tag_logic": "all",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	list := decode[models.List](t, w)
	assert.EqualValues(t, 1, list.ProfileCount)
	assert.NotEmpty(t, list.ListID)

	w = s.do(t, http.MethodGet, "/v1/lists/"+list.ID.String()+"/members", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	members := decode[[]models.Profile](t, w)
	require.Len(t, members, 1)
	assert.Equal(t, ada.ID, members[0].ID)

	w = s.do(t, http.MethodPatch, "/v1/lists/"+list.ID.String(), token, gin.H{"tag_logic": "any"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[models.List](t, w).ProfileCount)

	w = s.do(t, http.MethodPost, "/v1/lists/"+list.ID.String()+"/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"profile_count":2}`, w.Body.String())
}

func TestCampaigns_SendFlow(t *testing.T) {
	s := newTestServer(t)
	token, company := s.signup(t, "ops@acme.test")
	vip := s.createTag(t, token, "vip")
	ada := s.identify(t, company, "s1", "ada@example.com").Profile
	s.do(t, http.MethodPost, "/v1/profiles/"+ada.ID.String()+"/tags", token, gin.H{"tag_id": vip.ID})

	w := s.do(t, http.MethodPost, "/v1/lists", token, gin.H{"name": "VIPs", "tags": []uuid.UUID{vip.ID}})
	require.Equal(t, http.StatusCreated, w.Code)
	list := decode[models.List](t, w)

	w = s.do(t, http.MethodPost, "/v1/campaigns", token, gin.H{
		"list_id": list.ID,
		"name":    "Launch",
		"content": gin.H{"subject": "Hi {{name}}", "html_body": "<p>Hello</p>"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	camp := decode[models.Campaign](t, w)
	assert.Equal(t, models.CampaignDraft, camp.Status)

	base := "/v1/campaigns/" + camp.ID.String()

	w = s.do(t, http.MethodPost, base+"/send", token, gin.H{"when": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/send", token, gin.H{"when": "now"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, models.CampaignSending, decode[models.Campaign](t, w).Status)
	assert.Equal(t, 1, s.queue.Len())

	// A second trigger cannot start a second pipeline.
	w = s.do(t, http.MethodPost, base+"/send", token, gin.H{"when": "now"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, s.queue.Len())

	w = s.do(t, http.MethodPut, base, token, gin.H{"list_id": list.ID, "name": "Edited"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, base+"/pause", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, base+"/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[service.StatsView](t, w)
	assert.Equal(t, models.CampaignPaused, stats.Status)
}

func TestCampaigns_ScheduleAndSweep(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ops@acme.test")
	tag := s.createTag(t, token, "vip")

	w := s.do(t, http.MethodPost, "/v1/lists", token, gin.H{"name": "VIPs", "tags": []uuid.UUID{tag.ID}})
	require.Equal(t, http.StatusCreated, w.Code)
	list := decode[models.List](t, w)

	w = s.do(t, http.MethodPost, "/v1/campaigns", token, gin.H{
		"list_id": list.ID, "name": "Later", "content": gin.H{"subject": "Soon"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	camp := decode[models.Campaign](t, w)

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w = s.do(t, http.MethodPost, "/v1/campaigns/"+camp.ID.String()+"/send", token, gin.H{"when": at})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, models.CampaignScheduled, decode[models.Campaign](t, w).Status)

	// Not due yet.
	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set("X-Internal-Token", "internal")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"started":0}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRules_RejectBadExpression(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ops@acme.test")
	tag := s.createTag(t, token, "cart")

	w := s.do(t, http.MethodPost, "/v1/rules", token, gin.H{
		"tag_id": tag.ID, "name": "broken", "expression": "eventType ==",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/rules", token, gin.H{
		"tag_id": tag.ID, "name": "cart", "expression": `eventType == "add_to_cart"`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decode[models.TagRule](t, w).Enabled)

	w = s.do(t, http.MethodGet, "/v1/rules", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TagRule](t, w), 1)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStreamStats_ClosesOnTerminalStatus(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ops@acme.test")
	tag := s.createTag(t, token, "vip")

	w := s.do(t, http.MethodPost, "/v1/lists", token, gin.H{"name": "VIPs", "tags": []uuid.UUID{tag.ID}})
	require.Equal(t, http.StatusCreated, w.Code)
	list := decode[models.List](t, w)
	w = s.do(t, http.MethodPost, "/v1/campaigns", token, gin.H{
		"list_id": list.ID, "name": "Draft", "content": gin.H{"subject": "Hi"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	camp := decode[models.Campaign](t, w)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/v1/campaigns/" + camp.ID.String() + "/stats/ws?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame service.StatsView
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, camp.ID, frame.CampaignID)
	assert.Equal(t, models.CampaignDraft, frame.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
