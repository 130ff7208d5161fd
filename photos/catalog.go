package photos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"ai_news_writer/generator"
	"ai_news_writer/render"
)

var ErrNotFound = errors.New("photo not found")

// Photo 是图库中的一张照片。
type Photo struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	URL              string    `json:"url,omitempty" yaml:"url"`
	FullURL          string    `json:"fullUrl,omitempty" yaml:"fullUrl"`
	CosURL           string    `json:"cosUrl,omitempty" yaml:"cosUrl"`
	ThumbSrc         string    `json:"thumbSrc,omitempty" yaml:"thumbSrc"`
	Description      string    `json:"description,omitempty" yaml:"description"`
	Tags             []string  `gorm:"serializer:json" json:"tags,omitempty" yaml:"tags"`
	PhotographerID   string    `gorm:"size:64" json:"photographerId,omitempty" yaml:"photographerId"`
	PhotographerName string    `json:"photographerName,omitempty" yaml:"photographerName"`
	ProjectTitle     string    `json:"projectTitle,omitempty" yaml:"projectTitle"`
	CreatedAt        time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"-"`
}

// Record is the lookup view of the photo.
func (p Photo) Record() render.PhotoRecord {
	return render.PhotoRecord{
		URL:              p.URL,
		FullURL:          p.FullURL,
		CosURL:           p.CosURL,
		ThumbSrc:         p.ThumbSrc,
		PhotographerName: p.PhotographerName,
	}
}

// Catalog is a read-mostly photo table.
type Catalog struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (and migrates) a sqlite catalog at path; ":memory:" works for tests.
func Open(path string, logger *zap.Logger) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open photo db %s: %w", path, err)
	}
	return New(db, logger)
}

func New(db *gorm.DB, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&Photo{}); err != nil {
		return nil, fmt.Errorf("migrate photos: %w", err)
	}
	return &Catalog{db: db, logger: logger}, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (Photo, error) {
	var p Photo
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Photo{}, ErrNotFound
	}
	if err != nil {
		return Photo{}, fmt.Errorf("get photo %s: %w", id, err)
	}
	return p, nil
}

// Upsert inserts photos or overwrites existing ones with the same id.
func (c *Catalog) Upsert(ctx context.Context, photos ...Photo) error {
	if len(photos) == 0 {
		return nil
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&photos).Error
}

func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&Photo{}).Count(&n).Error
	return n, err
}

type seedFile struct {
	Photos []Photo `yaml:"photos"`
}

// Import loads a YAML or JSON seed file, either a list of photos or an object
// with a "photos" list, and upserts it.
func (c *Catalog) Import(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var list []Photo
	if err := yaml.Unmarshal(data, &list); err != nil {
		var seed seedFile
		if err2 := yaml.Unmarshal(data, &seed); err2 != nil {
			return 0, fmt.Errorf("parse seed %s: %w", path, err2)
		}
		list = seed.Photos
	}

	valid := list[:0]
	for _, p := range list {
		if p.ID == "" {
			c.logger.Warn("skip seed photo without id", zap.String("url", p.URL))
			continue
		}
		valid = append(valid, p)
	}
	if err := c.Upsert(ctx, valid...); err != nil {
		return 0, fmt.Errorf("import seed %s: %w", path, err)
	}
	c.logger.Info("photos imported", zap.String("path", path), zap.Int("count", len(valid)))
	return len(valid), nil
}

// LookupPhoto serves the generator: the first absolute URL and the
// photographer of a catalog photo.
func (c *Catalog) LookupPhoto(ctx context.Context, id string) (generator.ResultPhoto, bool) {
	p, err := c.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("photo lookup failed", zap.String("photo_id", id), zap.Error(err))
		}
		return generator.ResultPhoto{}, false
	}
	return generator.ResultPhoto{ID: p.ID, URL: p.Record().AbsoluteURL(), PhotographerName: p.PhotographerName}, true
}

// GetPhoto lets the catalog stand in for the remote lookup service.
func (c *Catalog) GetPhoto(ctx context.Context, id string) (render.PhotoRecord, error) {
	p, err := c.Get(ctx, id)
	if err != nil {
		return render.PhotoRecord{}, err
	}
	return p.Record(), nil
}

func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
