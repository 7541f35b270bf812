package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/volman/internal/repository"
	"github.com/hitoshi/volman/internal/week"
)

const (
	fetchTimeout = 30 * time.Second
	// カタログCSVの上限。異常に大きいレスポンスを打ち切る
	maxCatalogBytes = 10 << 20
)

// ImportResult はインポートの集計結果。
type ImportResult struct {
	Imported int
	Skipped  int
}

// Recorder は取り込み結果のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordCatalogImport(imported, skipped int)
}

// Importer はCSVカタログを取り込みプロジェクト表へupsertする。
// リモート取得はSSRF対策済みクライアント経由で行い、
// 自由入力フィールド(title/location)はサニタイズしてから保存する。
type Importer struct {
	projectRepo repository.ProjectRepository
	policy      *bluemonday.Policy
	client      *http.Client
	recorder    Recorder
	logger      *slog.Logger
}

// NewImporter はImporterを生成する。
// recorderはnilでもよく、その場合メトリクスは記録されない。
func NewImporter(projectRepo repository.ProjectRepository, recorder Recorder, logger *slog.Logger) *Importer {
	config := safeurl.GetConfigBuilder().
		SetTimeout(fetchTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	wrapped := safeurl.Client(config)

	return &Importer{
		projectRepo: projectRepo,
		policy:      bluemonday.StrictPolicy(),
		client:      wrapped.Client,
		recorder:    recorder,
		logger:      logger,
	}
}

// ImportFile はローカルのCSVファイルを取り込む。
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return im.importFrom(ctx, f, path)
}

// ImportURL はリモートのCSVカタログを取得して取り込む。
// プライベートアドレスへの到達はクライアント側で拒否される。
func (im *Importer) ImportURL(ctx context.Context, rawURL string) (*ImportResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported catalog URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	return im.importFrom(ctx, io.LimitReader(resp.Body, maxCatalogBytes), rawURL)
}

// importFrom はパース済みの各行を検証・サニタイズしてupsertする。
// 曜日トークンが不正な行、title/locationが空になる行はスキップして続行する。
func (im *Importer) importFrom(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	projects, err := ParseProjects(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	result := &ImportResult{}
	for _, p := range projects {
		if _, ok := week.Ordinal(p.Day); !ok {
			im.logger.Warn("カタログ行をスキップ: 不正な曜日",
				slog.String("title", p.Title),
				slog.String("day", p.Day))
			result.Skipped++
			continue
		}

		p.Title = im.policy.Sanitize(p.Title)
		p.Location = im.policy.Sanitize(p.Location)
		if p.Title == "" || p.Location == "" {
			im.logger.Warn("カタログ行をスキップ: タイトルまたは場所が空",
				slog.String("day", p.Day))
			result.Skipped++
			continue
		}
		if p.TotalSlots < 0 || p.RegisteredSlots < 0 || p.RegisteredSlots > p.TotalSlots {
			im.logger.Warn("カタログ行をスキップ: 枠数が不整合",
				slog.String("title", p.Title),
				slog.Int("total", p.TotalSlots),
				slog.Int("registered", p.RegisteredSlots))
			result.Skipped++
			continue
		}

		if err := im.projectRepo.Upsert(ctx, p); err != nil {
			return result, fmt.Errorf("failed to upsert project %q: %w", p.Title, err)
		}
		result.Imported++
	}

	if im.recorder != nil {
		im.recorder.RecordCatalogImport(result.Imported, result.Skipped)
	}

	im.logger.Info("カタログ取り込み完了",
		slog.String("source", source),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped))

	return result, nil
}
