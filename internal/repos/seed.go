package repos

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"storefront/internal/domain"
)

//go:embed seed.yaml
var seedFixture []byte

type seedFile struct {
	Roles []struct {
		Name        string   `yaml:"name"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
	Users []struct {
		Email    string `yaml:"email"`
		Name     string `yaml:"name"`
		Role     string `yaml:"role"`
		Password string `yaml:"password"`
	} `yaml:"users"`
	Categories []struct {
		Name        string `yaml:"name"`
		Parent      string `yaml:"parent"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Products []struct {
		Name          string            `yaml:"name"`
		Category      string            `yaml:"category"`
		Brand         string            `yaml:"brand"`
		Description   string            `yaml:"description"`
		Price         string            `yaml:"price"`
		OriginalPrice string            `yaml:"original_price"`
		Condition     string            `yaml:"condition"`
		ProductType   string            `yaml:"product_type"`
		Stock         int               `yaml:"stock"`
		LowStock      *int              `yaml:"low_stock_threshold"`
		Images        []string          `yaml:"images"`
		Variants      []seedVariantFile `yaml:"variants"`
	} `yaml:"products"`
}

type seedVariantFile struct {
	SKU        string            `yaml:"sku"`
	Name       string            `yaml:"name"`
	Price      string            `yaml:"price"`
	Stock      int               `yaml:"stock"`
	Attributes map[string]string `yaml:"attributes"`
}

// SeedReport counts rows inserted by Seed.
type SeedReport struct {
	Roles, Users, Categories, Products int
}

// EnsureRoles makes sure the admin and customer roles exist. Registration
// depends on them, so serve calls it even when demo seeding is off.
func EnsureRoles(ctx context.Context, db *sqlx.DB) error {
	f, err := loadSeed()
	if err != nil {
		return err
	}
	users := NewUserRepo(db)
	for _, r := range f.Roles {
		if err := users.UpsertRole(ctx, &domain.Role{ID: uuid.NewString(), Name: r.Name, Permissions: r.Permissions}); err != nil {
			return fmt.Errorf("role %s: %w", r.Name, err)
		}
	}
	return nil
}

// Seed inserts the embedded demo data. Rows that already exist (matched by
// email or slug) are left alone, so it is safe to run on every start.
func Seed(ctx context.Context, db *sqlx.DB) (SeedReport, error) {
	var rep SeedReport
	f, err := loadSeed()
	if err != nil {
		return rep, err
	}

	err = NewTxRunner(db).Do(ctx, func(tx *sqlx.Tx) error {
		users := NewUserRepo(tx)
		cats := NewCategoryRepo(tx)
		products := NewProductRepo(tx)

		for _, r := range f.Roles {
			if err := users.UpsertRole(ctx, &domain.Role{ID: uuid.NewString(), Name: r.Name, Permissions: r.Permissions}); err != nil {
				return fmt.Errorf("role %s: %w", r.Name, err)
			}
			rep.Roles++
		}

		for _, u := range f.Users {
			if _, err := users.ByEmail(ctx, u.Email); err == nil {
				continue
			} else if !IsNotFound(err) {
				return err
			}
			role, err := users.RoleByName(ctx, u.Role)
			if err != nil {
				return fmt.Errorf("user %s: role %s: %w", u.Email, u.Role, err)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			if err := users.Create(ctx, &domain.User{
				ID: uuid.NewString(), Email: u.Email, Name: u.Name, Hash: string(hash), RoleID: role.ID,
			}); err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
			rep.Users++
		}

		catIDs := map[string]string{}
		for _, c := range f.Categories {
			slug := domain.Slugify(c.Name)
			if existing, err := cats.Get(ctx, slug); err == nil {
				catIDs[c.Name] = existing.ID
				continue
			} else if !IsNotFound(err) {
				return err
			}
			cat := domain.Category{ID: uuid.NewString(), Name: c.Name, Slug: slug, Description: c.Description}
			if c.Parent != "" {
				pid, ok := catIDs[c.Parent]
				if !ok {
					return fmt.Errorf("category %s: parent %s must be listed first", c.Name, c.Parent)
				}
				cat.ParentID = &pid
			}
			if err := cats.Create(ctx, &cat); err != nil {
				return fmt.Errorf("category %s: %w", c.Name, err)
			}
			catIDs[c.Name] = cat.ID
			rep.Categories++
		}

		for _, p := range f.Products {
			slug := domain.Slugify(p.Name)
			if _, err := products.Get(ctx, slug); err == nil {
				continue
			} else if !IsNotFound(err) {
				return err
			}
			catID, ok := catIDs[p.Category]
			if !ok {
				return fmt.Errorf("product %s: unknown category %s", p.Name, p.Category)
			}
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return fmt.Errorf("product %s: price: %w", p.Name, err)
			}
			prod := domain.Product{
				ID: uuid.NewString(), CategoryID: catID, Name: p.Name, Slug: slug, Description: p.Description,
				Brand: p.Brand, Price: price, Images: p.Images, ProductType: p.ProductType,
				Condition: p.Condition, Active: true,
			}
			if p.OriginalPrice != "" {
				op, err := decimal.NewFromString(p.OriginalPrice)
				if err != nil {
					return fmt.Errorf("product %s: original_price: %w", p.Name, err)
				}
				prod.OriginalPrice = decimal.NewNullDecimal(op)
			}
			prod.TotalQuantity = p.Stock
			prod.LowStockThreshold = 5
			if p.LowStock != nil {
				prod.LowStockThreshold = *p.LowStock
			}
			if err := products.Create(ctx, &prod); err != nil {
				return fmt.Errorf("product %s: %w", p.Name, err)
			}
			for _, v := range p.Variants {
				variant := domain.ProductVariant{
					ID: uuid.NewString(), ProductID: prod.ID, SKU: v.SKU, Name: v.Name,
					Attributes: v.Attributes, TotalQuantity: v.Stock,
				}
				if v.Price != "" {
					vp, err := decimal.NewFromString(v.Price)
					if err != nil {
						return fmt.Errorf("variant %s: price: %w", v.SKU, err)
					}
					variant.Price = decimal.NewNullDecimal(vp)
				}
				if err := products.CreateVariant(ctx, &variant); err != nil {
					return fmt.Errorf("variant %s: %w", v.SKU, err)
				}
			}
			rep.Products++
		}
		return nil
	})
	return rep, err
}

func loadSeed() (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(seedFixture))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed fixture: %w", err)
	}
	return &f, nil
}
