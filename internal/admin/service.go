// Package admin implements the operator console: product listing, creation
// and deletion, and the order list.
package admin

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/snapzone/storefront/internal/catalog"
	"github.com/snapzone/storefront/internal/checkout"
	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/supabase"
)

// ImageStore uploads product images to a public bucket.
type ImageStore interface {
	UploadWithToken(ctx context.Context, bucketID, filePath string, data []byte, opts *supabase.UploadOptions, accessToken string) (*supabase.FileObject, error)
	GetPublicURL(bucketID, filePath string) string
}

// Service backs the admin console. Callers are expected to have passed the
// admin gate.
type Service struct {
	products catalog.Store
	orders   OrderStore
	images   ImageStore
	bucket   string
	logger   *logging.Logger
}

// NewService creates the admin service. Uploaded images go to bucket through
// images when both are set, otherwise they are embedded as data URLs.
func NewService(products catalog.Store, orders OrderStore, images ImageStore, bucket string, logger *logging.Logger) *Service {
	return &Service{
		products: products,
		orders:   orders,
		images:   images,
		bucket:   bucket,
		logger:   logger,
	}
}

// ListProducts returns every product, newest first.
func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	products, err := s.products.ListNewest(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Error fetching products")
		return nil, svcerrors.Upstream("Could not load products", err)
	}
	return products, nil
}

// CreateProduct validates the form and inserts a new, non-featured product.
func (s *Service) CreateProduct(ctx context.Context, form ProductForm) (*catalog.Product, error) {
	p, err := form.parse()
	if err != nil {
		return nil, err
	}

	np := p.product
	if p.image != nil {
		url, err := s.storeImage(ctx, p.image)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Error uploading product image")
			return nil, svcerrors.Upstream("Error adding product. Please try again.", err)
		}
		np.ImageURL = url
	}

	created, err := s.products.Create(ctx, np)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Error adding product")
		return nil, svcerrors.Upstream("Error adding product. Please try again.", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"product_id": created.ID,
		"category":   created.Category,
	}).Info("Product created")
	return created, nil
}

// DeleteProduct removes a product. Unknown ids are reported as not found.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	found, err := s.products.Delete(ctx, id)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Error deleting product")
		return svcerrors.Upstream("Error deleting product. Please try again.", err)
	}
	if !found {
		return svcerrors.NotFound("Product", id)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"product_id": id,
	}).Info("Product deleted")
	return nil
}

// ListOrders returns every order, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]checkout.Order, error) {
	orders, err := s.orders.ListNewest(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Error fetching orders")
		return nil, svcerrors.Upstream("Could not load orders", err)
	}
	return orders, nil
}

func (s *Service) storeImage(ctx context.Context, u *Upload) (string, error) {
	if s.images == nil || s.bucket == "" {
		return u.DataURL(), nil
	}

	objectPath := "products/" + uuid.NewString() + imageExt(u)
	_, err := s.images.UploadWithToken(ctx, s.bucket, objectPath, u.Data, &supabase.UploadOptions{
		ContentType:  u.ContentType,
		CacheControl: "3600",
	}, supabase.AccessTokenFromContext(ctx))
	if err != nil {
		return "", err
	}
	return s.images.GetPublicURL(s.bucket, objectPath), nil
}

func imageExt(u *Upload) string {
	if ext := strings.ToLower(path.Ext(u.Filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch u.ContentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
