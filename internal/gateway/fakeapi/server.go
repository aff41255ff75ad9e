// Package fakeapi serves the article service's REST contract from memory.
// It backs the client contract tests, the integration test and
// `chronicle mock-server`.
package fakeapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/rs/zerolog"
)

const defaultPageSize = 20

type account struct {
	user     gateway.User
	password string
}

type record struct {
	article  gateway.Article
	authorID int
	captions []string
}

// Server holds users, tokens, categories and articles.
type Server struct {
	mu         sync.Mutex
	log        zerolog.Logger
	users      map[int]*account
	tokens     map[string]int
	articles   map[int]*record
	categories []gateway.Category
	nextUser   int
	nextArt    int
	uploads    int
}

// New returns a server seeded with the default categories.
func New(log zerolog.Logger) *Server {
	return &Server{
		log:      log,
		users:    make(map[int]*account),
		tokens:   make(map[string]int),
		articles: make(map[int]*record),
		categories: []gateway.Category{
			{ID: 1, Name: "Ancient History"},
			{ID: 2, Name: "Medieval"},
			{ID: 3, Name: "Early Modern"},
			{ID: 4, Name: "Modern Era"},
		},
		nextUser: 1,
		nextArt:  1,
	}
}

// Router builds the gin engine with every route under /api.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.recoveryMiddleware())
	router.Use(s.loggingMiddleware())

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.register)
			auth.POST("/login", s.login)
		}

		api.GET("/categories", s.listCategories)

		articles := api.Group("/articles")
		{
			articles.GET("", s.listArticles)
			articles.GET("/:id", s.getArticle)
			articles.POST("", s.requireAuth, s.createArticle)
			articles.PUT("/:id", s.requireAuth, s.updateArticle)
			articles.DELETE("/:id", s.requireAuth, s.deleteArticle)
		}

		users := api.Group("/users")
		{
			users.GET("/:id", s.getUser)
			users.GET("/:id/articles", s.listUserArticles)
			users.PUT("/:id", s.requireAuth, s.updateUser)
			users.DELETE("/:id", s.requireAuth, s.deleteUser)
		}
	}

	return router
}

// AddUser registers an account directly and returns it with a session token.
func (s *Server) AddUser(fullName, email, password string) (gateway.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.createUserLocked(fullName, email, password)
	return u, s.issueTokenLocked(u.ID)
}

// AddArticle stores an article authored by authorID and returns its id.
func (s *Server) AddArticle(authorID int, a gateway.Article) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	a = a.Clone()
	a.ID = s.nextArt
	s.nextArt++
	if acc, ok := s.users[authorID]; ok {
		a.AuthorName = acc.user.FullName
	}
	if a.Status == "" {
		a.Status = gateway.StatusPublished
	}
	if a.Status == gateway.StatusPublished && a.PublishedAt == nil {
		now := timestamp()
		a.PublishedAt = &now
	}
	a.CategoryName = s.categoryNameLocked(a.CategoryID)
	s.articles[a.ID] = &record{article: a, authorID: authorID}
	return a.ID
}

// Article returns a copy of the stored article.
func (s *Server) Article(id int) (gateway.Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.articles[id]
	if !ok {
		return gateway.Article{}, false
	}
	return r.article.Clone(), true
}

func (s *Server) createUserLocked(fullName, email, password string) gateway.User {
	u := gateway.User{ID: s.nextUser, FullName: fullName, Email: email}
	s.nextUser++
	s.users[u.ID] = &account{user: u, password: password}
	return u
}

func (s *Server) issueTokenLocked(userID int) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

func (s *Server) categoryNameLocked(id int) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (s *Server) findByEmailLocked(email string) *account {
	for _, acc := range s.users {
		if strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

func ok(c *gin.Context, message string, data any) {
	body := gin.H{"status": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": false, "message": message})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		fail(c, http.StatusUnauthorized, "Missing token")
		return
	}
	s.mu.Lock()
	userID, valid := s.tokens[token]
	s.mu.Unlock()
	if !valid {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func (s *Server) register(c *gin.Context) {
	var req gateway.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FullName == "" || req.Email == "" || len(req.Password) < 6 {
		fail(c, http.StatusBadRequest, "Full name, email and a password of at least 6 characters are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmailLocked(req.Email) != nil {
		fail(c, http.StatusConflict, "Email is already registered")
		return
	}
	u := s.createUserLocked(req.FullName, req.Email, req.Password)
	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Registration successful",
		"token":   s.issueTokenLocked(u.ID),
		"data":    u,
	})
}

func (s *Server) login(c *gin.Context) {
	var req gateway.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.findByEmailLocked(req.Email)
	if acc == nil {
		fail(c, http.StatusNotFound, "Account not found")
		return
	}
	if acc.password != req.Password {
		fail(c, http.StatusUnauthorized, "Wrong password")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Login successful",
		"token":   s.issueTokenLocked(acc.user.ID),
		"data":    acc.user,
	})
}

func (s *Server) listCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, "", append([]gateway.Category(nil), s.categories...))
}

func matches(a gateway.Article, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(a.Title), q) || strings.Contains(strings.ToLower(a.Content), q) {
		return true
	}
	return a.Tags != nil && strings.Contains(strings.ToLower(*a.Tags), q)
}

// sortedLocked returns articles newest first.
func (s *Server) sortedLocked(keep func(*record) bool) []gateway.Article {
	var out []gateway.Article
	for _, r := range s.articles {
		if keep(r) {
			out = append(out, r.article.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Server) listArticles(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		fail(c, http.StatusBadRequest, "Invalid page")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		fail(c, http.StatusBadRequest, "Invalid limit")
		return
	}

	s.mu.Lock()
	all := s.sortedLocked(func(r *record) bool {
		return r.article.Status == gateway.StatusPublished && matches(r.article, q)
	})
	s.mu.Unlock()

	start := (page - 1) * limit
	items := []gateway.Article{}
	if start < len(all) {
		end := min(start+limit, len(all))
		items = all[start:end]
	}
	msg := ""
	if q != "" && len(all) == 0 {
		msg = "No articles match your search"
	}
	ok(c, msg, items)
}

func (s *Server) getArticle(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, found := s.articles[id]
	if !found {
		fail(c, http.StatusNotFound, "Article not found")
		return
	}
	r.article.ViewsCount++
	ok(c, "", r.article.Clone())
}

func (s *Server) storeImagesLocked(encoded []string) ([]string, error) {
	refs := make([]string, 0, len(encoded))
	for i, img := range encoded {
		if _, err := base64.StdEncoding.DecodeString(img); err != nil {
			return nil, fmt.Errorf("image %d is not valid base64", i+1)
		}
		s.uploads++
		refs = append(refs, fmt.Sprintf("/uploads/%d-%s.jpg", s.uploads, uuid.NewString()[:8]))
	}
	return refs, nil
}

func (s *Server) createArticle(c *gin.Context) {
	var p gateway.ArticlePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(p.Title) == "" {
		fail(c, http.StatusBadRequest, "Title is required")
		return
	}
	caller := c.GetInt("user_id")
	if p.UserID == nil || *p.UserID != caller {
		fail(c, http.StatusForbidden, "User mismatch")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	refs, err := s.storeImagesLocked(p.Images)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	a := gateway.Article{
		ID:     s.nextArt,
		Title:  p.Title,
		Status: p.Status,
		Images: refs,
		Tags:   p.Tags,
	}
	s.nextArt++
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.CategoryID != nil {
		a.CategoryID = *p.CategoryID
		a.CategoryName = s.categoryNameLocked(*p.CategoryID)
	}
	if acc, found := s.users[caller]; found {
		a.AuthorName = acc.user.FullName
	}
	if a.Status == gateway.StatusPublished {
		now := timestamp()
		a.PublishedAt = &now
	}
	s.articles[a.ID] = &record{article: a, authorID: caller, captions: p.ImageCaptions}

	msg := "Article saved as draft"
	if a.Status == gateway.StatusPublished {
		msg = "Article published"
	}
	ok(c, msg, nil)
}

func (s *Server) updateArticle(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var p gateway.ArticlePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.articles[id]
	if !found {
		fail(c, http.StatusNotFound, "Article not found")
		return
	}
	if r.authorID != c.GetInt("user_id") {
		fail(c, http.StatusForbidden, "You can only edit your own articles")
		return
	}

	refs, err := s.storeImagesLocked(p.Images)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	a := &r.article
	if strings.TrimSpace(p.Title) != "" {
		a.Title = p.Title
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.CategoryID != nil {
		a.CategoryID = *p.CategoryID
		a.CategoryName = s.categoryNameLocked(*p.CategoryID)
	}
	if p.Tags != nil {
		a.Tags = p.Tags
	}
	if len(p.DeletedImages) > 0 {
		drop := make(map[string]bool, len(p.DeletedImages))
		for _, ref := range p.DeletedImages {
			drop[ref] = true
		}
		kept := a.Images[:0]
		for _, ref := range a.Images {
			if !drop[ref] {
				kept = append(kept, ref)
			}
		}
		a.Images = kept
	}
	a.Images = append(a.Images, refs...)
	r.captions = append(r.captions, p.ImageCaptions...)
	if p.Status != "" {
		if p.Status == gateway.StatusPublished && a.PublishedAt == nil {
			now := timestamp()
			a.PublishedAt = &now
		}
		a.Status = p.Status
	}
	ok(c, "Article updated", nil)
}

func (s *Server) deleteArticle(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, found := s.articles[id]
	if !found {
		fail(c, http.StatusNotFound, "Article not found")
		return
	}
	if r.authorID != c.GetInt("user_id") {
		fail(c, http.StatusForbidden, "You can only delete your own articles")
		return
	}
	delete(s.articles, id)
	ok(c, "Article deleted", nil)
}

func (s *Server) listUserArticles(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.sortedLocked(func(r *record) bool { return r.authorID == id })
	if items == nil {
		items = []gateway.Article{}
	}
	ok(c, "", items)
}

func (s *Server) getUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.users[id]
	if !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	ok(c, "", acc.user)
}

func (s *Server) updateUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if id != c.GetInt("user_id") {
		fail(c, http.StatusForbidden, "You can only edit your own profile")
		return
	}
	var req gateway.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.users[id]
	if !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if other := s.findByEmailLocked(req.Email); other != nil && other.user.ID != id {
		fail(c, http.StatusConflict, "Email is already registered")
		return
	}
	if req.FullName != "" {
		acc.user.FullName = req.FullName
	}
	if req.Email != "" {
		acc.user.Email = req.Email
	}
	if req.Bio != nil {
		acc.user.Bio = *req.Bio
	}
	if req.Password != nil && *req.Password != "" {
		acc.password = *req.Password
	}
	for _, r := range s.articles {
		if r.authorID == id {
			r.article.AuthorName = acc.user.FullName
		}
	}
	ok(c, "Profile updated", nil)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if id != c.GetInt("user_id") {
		fail(c, http.StatusForbidden, "You can only delete your own account")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.users[id]; !found {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	delete(s.users, id)
	for aid, r := range s.articles {
		if r.authorID == id {
			delete(s.articles, aid)
		}
	}
	for token, uid := range s.tokens {
		if uid == id {
			delete(s.tokens, token)
		}
	}
	ok(c, "Account deleted", nil)
}

func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error().Interface("error", err).Msg("Panic recovered")
				fail(c, http.StatusInternalServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		event := s.log.Info()
		if statusCode >= 400 {
			event = s.log.Warn()
		}
		if statusCode >= 500 {
			event = s.log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Int("status", statusCode).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}
