// Package fixture serves a small local copy of the video site's DOM: home page with
// consent dialog, two-step sign-in, search results and watch page.
package fixture

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	consentCookie = "CONSENT"
	sessionCookie = "SID"
)

// ResultsPerQuery is how many videos a search returns.
const ResultsPerQuery = 8

// PasswordDelay is how long the sign-in form takes to reveal the password step.
const PasswordDelay = 300 * time.Millisecond

// Options tunes the fixture.
type Options struct {
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// Video is one search result.
type Video struct {
	ID    string
	Title string
}

// Search returns the videos for query. Queries containing "zzzz" have no results.
func Search(query string) []Video {
	query = strings.TrimSpace(query)
	if query == "" || strings.Contains(query, "zzzz") {
		return nil
	}

	videos := make([]Video, 0, ResultsPerQuery)
	for i := 1; i <= ResultsPerQuery; i++ {
		videos = append(videos, Video{
			ID:    fmt.Sprintf("v%02d-%s", i, slug(query)),
			Title: fmt.Sprintf("%s, part %d", titleCase(query), i),
		})
	}
	return videos
}

// New creates the fixture app.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ytflow fixture",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}

	h := &handler{tmpl: template.Must(template.New("site").Parse(siteTemplates))}

	app.Get("/", h.home)
	app.Get("/signin", h.signIn)
	app.Post("/session", h.createSession)
	app.Get("/results", h.results)
	app.Get("/watch", h.watch)

	return app
}

// Server is a running fixture.
type Server struct {
	app *fiber.App
	ln  net.Listener
}

// Start serves the fixture on addr; "127.0.0.1:0" picks a free port.
func Start(addr string, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{app: New(opts), ln: ln}
	go func() {
		if err := s.app.Listener(ln); err != nil {
			log.Printf("Warning: fixture server stopped: %v", err)
		}
	}()

	log.Printf("Fixture site serving on %s", s.URL())
	return s, nil
}

// URL is the base URL of the running fixture.
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type handler struct {
	tmpl *template.Template
}

type pageData struct {
	Title     string
	Query     string
	Consent   bool
	SignedIn  bool
	Videos    []Video
	Video     Video
	DelayMS   int64
	NoResults bool
}

func (h *handler) render(c *fiber.Ctx, name string, data pageData) error {
	data.Consent = c.Cookies(consentCookie) == ""
	data.SignedIn = c.Cookies(sessionCookie) != ""

	var b strings.Builder
	if err := h.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	c.Type("html", "utf-8")
	return c.SendString(b.String())
}

func (h *handler) home(c *fiber.Ctx) error {
	return h.render(c, "home", pageData{Title: "Home"})
}

func (h *handler) signIn(c *fiber.Ctx) error {
	return h.render(c, "signin", pageData{Title: "Sign in", DelayMS: PasswordDelay.Milliseconds()})
}

func (h *handler) createSession(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	if email == "" || password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email and password are required")
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    slug(email),
		Path:     "/",
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"redirect": "/"})
}

func (h *handler) results(c *fiber.Ctx) error {
	query := c.Query("search_query")
	videos := Search(query)
	return h.render(c, "results", pageData{
		Title:     query,
		Query:     query,
		Videos:    videos,
		NoResults: len(videos) == 0,
	})
}

func (h *handler) watch(c *fiber.Ctx) error {
	id := c.Query("v")
	if id == "" {
		return c.Redirect("/")
	}

	video := Video{ID: id, Title: titleFromID(id)}
	return h.render(c, "watch", pageData{Title: video.Title, Video: video})
}

// titleFromID rebuilds the title Search gave the video.
func titleFromID(id string) string {
	var n int
	var rest string
	if _, err := fmt.Sscanf(id, "v%02d-%s", &n, &rest); err != nil || n < 1 {
		return ""
	}
	return fmt.Sprintf("%s, part %d", titleCase(strings.ReplaceAll(rest, "-", " ")), n)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
