package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/angelmondragon/skillbridge-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
	"github.com/angelmondragon/skillbridge-billing/pkg/paypal"
)

const (
	productType     = "SERVICE"
	productCategory = "SOFTWARE"
	listPageSize    = 20
	maxListPages    = 10
	cacheSize       = 16
)

type productAPI interface {
	ListProducts(ctx context.Context, page, pageSize int) (*paypal.ProductList, error)
	CreateProduct(ctx context.Context, product paypal.Product) (*paypal.Product, error)
}

// Service ensures the per-role catalog product exists.
type Service interface {
	EnsureProduct(ctx context.Context, account string, role enums.Role) (string, error)
}

type ServiceParams struct {
	Client    productAPI
	Logger    *logger.Logger
	BrandName string
	CacheTTL  time.Duration
}

type service struct {
	client productAPI
	logg   *logger.Logger
	brand  string
	cache  *expirable.LRU[string, string]
}

func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, errors.New("paypal client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	brand := strings.TrimSpace(params.BrandName)
	if brand == "" {
		return nil, errors.New("brand name required")
	}
	svc := &service{client: params.Client, logg: params.Logger, brand: brand}
	if params.CacheTTL > 0 {
		svc.cache = expirable.NewLRU[string, string](cacheSize, nil, params.CacheTTL)
	}
	return svc, nil
}

// ProductName is the catalog name owned by a role.
func ProductName(role enums.Role) string {
	return fmt.Sprintf("%s Plans", role.Label())
}

// EnsureProduct returns the product id for role, creating the product when no
// match is listed. Listing failures fall through to creation; creation
// failures are returned. Ids are memoized per processor account.
func (s *service) EnsureProduct(ctx context.Context, account string, role enums.Role) (string, error) {
	if !role.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown role").WithDetails(map[string]any{"role": role.String()})
	}
	cacheKey := account + ":" + role.String()
	if s.cache != nil {
		if id, ok := s.cache.Get(cacheKey); ok {
			return id, nil
		}
	}

	name := ProductName(role)
	ctx = s.logg.WithFields(ctx, map[string]any{"role": role.String(), "product_name": name})

	id, err := s.findExisting(ctx, name)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "paypal product listing failed; creating product")
	}
	if id == "" {
		created, err := s.client.CreateProduct(ctx, paypal.Product{
			Name:        name,
			Description: fmt.Sprintf("%s %s subscription plans", s.brand, role.Label()),
			Type:        productType,
			Category:    productCategory,
		})
		if err != nil {
			return "", err
		}
		if created == nil || created.ID == "" {
			return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal returned a product without id")
		}
		id = created.ID
		s.logg.Info(s.logg.WithField(ctx, "product_id", id), "paypal product created")
	}

	if s.cache != nil {
		s.cache.Add(cacheKey, id)
	}
	return id, nil
}

func (s *service) findExisting(ctx context.Context, name string) (string, error) {
	for page := 1; page <= maxListPages; page++ {
		list, err := s.client.ListProducts(ctx, page, listPageSize)
		if err != nil {
			return "", err
		}
		if list == nil {
			return "", nil
		}
		for _, p := range list.Products {
			if s.matches(p.Name, name) {
				return p.ID, nil
			}
		}
		if page >= list.TotalPages || len(list.Products) < listPageSize {
			return "", nil
		}
	}
	return "", nil
}

// matches accepts an exact name or a branded variant such as "SkillBridge SME Plans".
func (s *service) matches(candidate, name string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	target := strings.ToLower(name)
	if candidate == target {
		return true
	}
	return strings.Contains(candidate, strings.ToLower(s.brand)) && strings.Contains(candidate, target)
}
