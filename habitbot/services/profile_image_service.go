package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ellavondegurechaff/habitbot/habitbot/config"
	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
)

type ProfileImageService struct {
	logger *slog.Logger
	tmpl   *template.Template
}

type ProfileData struct {
	Username      string
	AvatarLetter  string
	Level         int
	TotalXP       int64
	LevelPercent  int
	XPIntoLevel   int64
	XPForNext     int64
	CurrentStreak int
	LongestStreak int
	Completions   int
	DoneToday     int
	HabitsToday   int
	Badges        []progress.EarnedBadge
}

func NewProfileImageService() *ProfileImageService {
	return &ProfileImageService{
		logger: slog.With(slog.String("service", "profile_image")),
		tmpl:   template.Must(template.New("profile").Parse(profileTemplate)),
	}
}

// BuildProfileData combines the stats and daily views into what the card shows.
func BuildProfileData(username string, stats *progress.Stats, daily *progress.DailyProgress) ProfileData {
	letter := "?"
	if trimmed := strings.TrimSpace(username); trimmed != "" {
		letter = strings.ToUpper(string([]rune(trimmed)[0]))
	}
	percent := 100
	if stats.Level.Needed > 0 {
		percent = int(stats.Level.Into * 100 / stats.Level.Needed)
	}
	data := ProfileData{
		Username:      username,
		AvatarLetter:  letter,
		Level:         stats.Level.Level,
		TotalXP:       stats.TotalXP,
		LevelPercent:  percent,
		XPIntoLevel:   stats.Level.Into,
		XPForNext:     stats.Level.Needed,
		CurrentStreak: stats.CurrentStreak,
		LongestStreak: stats.LongestStreak,
		Completions:   stats.TotalCompletions,
		Badges:        stats.Badges,
	}
	if daily != nil {
		data.DoneToday = daily.Completed
		data.HabitsToday = daily.Total
	}
	return data
}

func (s *ProfileImageService) RenderHTML(data ProfileData) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render profile template: %w", err)
	}
	return buf.String(), nil
}

// GenerateProfileImage screenshots the rendered card with headless Chrome.
func (s *ProfileImageService) GenerateProfileImage(ctx context.Context, data ProfileData) ([]byte, error) {
	start := time.Now()

	htmlContent, err := s.RenderHTML(data)
	if err != nil {
		return nil, err
	}

	chromedpCtx, cancel := chromedp.NewContext(ctx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, config.ProfileRenderTimeout)
	defer cancel()

	var imageBytes []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.Navigate("data:text/html,"+url.PathEscape(htmlContent)),
		chromedp.WaitVisible("#profile-container", chromedp.ByID),
		chromedp.Screenshot("#profile-container", &imageBytes, chromedp.ByID),
	)
	if err != nil {
		s.logger.Error("Failed to generate profile image",
			slog.String("type", "sys"),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	s.logger.Debug("Profile image generated",
		slog.String("type", "sys"),
		slog.String("username", data.Username),
		slog.Int("image_size", len(imageBytes)),
		slog.Duration("elapsed", time.Since(start)))
	return imageBytes, nil
}

const profileTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { margin: 0; background: transparent; font-family: "Segoe UI", Helvetica, Arial, sans-serif; }
  #profile-container { width: 640px; padding: 28px; border-radius: 20px; color: #f4f4f5;
    background: linear-gradient(135deg, #1e1b4b 0%, #312e81 55%, #4c1d95 100%); }
  .header { display: flex; align-items: center; gap: 18px; }
  .avatar { width: 72px; height: 72px; border-radius: 50%; background: #f59e0b; color: #1e1b4b;
    display: flex; align-items: center; justify-content: center; font-size: 36px; font-weight: 700; }
  .name { font-size: 28px; font-weight: 700; }
  .level { font-size: 16px; opacity: .8; }
  .bar { margin-top: 18px; height: 14px; border-radius: 7px; background: rgba(255,255,255,.15); overflow: hidden; }
  .fill { height: 100%; background: #22c55e; }
  .xp { margin-top: 6px; font-size: 13px; opacity: .75; }
  .stats { display: flex; gap: 12px; margin-top: 20px; }
  .stat { flex: 1; background: rgba(0,0,0,.25); border-radius: 12px; padding: 12px; text-align: center; }
  .stat b { display: block; font-size: 24px; }
  .badges { margin-top: 18px; font-size: 26px; letter-spacing: 4px; }
</style>
</head>
<body>
<div id="profile-container">
  <div class="header">
    <div class="avatar">{{.AvatarLetter}}</div>
    <div>
      <div class="name">{{.Username}}</div>
      <div class="level">Level {{.Level}} · {{.TotalXP}} XP</div>
    </div>
  </div>
  <div class="bar"><div class="fill" style="width: {{.LevelPercent}}%"></div></div>
  <div class="xp">{{if .XPForNext}}{{.XPIntoLevel}} / {{.XPForNext}} XP to the next level{{else}}Max level reached{{end}}</div>
  <div class="stats">
    <div class="stat"><b>{{.CurrentStreak}}</b>day streak</div>
    <div class="stat"><b>{{.LongestStreak}}</b>best streak</div>
    <div class="stat"><b>{{.Completions}}</b>completions</div>
    <div class="stat"><b>{{.DoneToday}}/{{.HabitsToday}}</b>today</div>
  </div>
  {{if .Badges}}<div class="badges">{{range .Badges}}<span title="{{.Name}}">{{.Icon}}</span>{{end}}</div>{{end}}
</div>
</body>
</html>`
