package storefront

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/snapzone/storefront/internal/admin"
	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
)

// maxProductFormBytes bounds a multipart product form: the image plus the
// text fields.
const maxProductFormBytes = admin.MaxImageBytes + 1<<20

// =============================================================================
// Admin Handlers
// =============================================================================

func (s *Server) handleAdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.admin.ListProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"products": viewProducts(products),
	})
}

func (s *Server) handleAdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var form admin.ProductForm
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		parsed, err := readMultipartProductForm(w, r)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		form = parsed
	} else if !httputil.DecodeJSON(w, r, &form) {
		return
	}

	p, err := s.admin.CreateProduct(r.Context(), form)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"product": viewProduct(*p),
		"message": "Product added successfully",
	})
}

// handleAdminDeleteProduct deletes immediately; the DELETE request is the
// operator's confirmation.
func (s *Server) handleAdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.admin.ListOrders(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
	})
}

// readMultipartProductForm reads the product fields and an optional "image"
// file.
func readMultipartProductForm(w http.ResponseWriter, r *http.Request) (admin.ProductForm, error) {
	var form admin.ProductForm

	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormBytes)
	if err := r.ParseMultipartForm(maxProductFormBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return form, svcerrors.FieldErrors("Invalid product form", map[string]string{"image": "uploaded image exceeds 5 MiB"})
		}
		return form, svcerrors.Validation("Invalid product form body")
	}

	form = admin.ProductForm{
		Name:          r.FormValue("name"),
		Description:   r.FormValue("description"),
		Price:         r.FormValue("price"),
		ImageURL:      r.FormValue("image_url"),
		Size:          r.FormValue("size"),
		Category:      r.FormValue("category"),
		Material:      r.FormValue("material"),
		StockQuantity: r.FormValue("stock_quantity"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, nil
	case err != nil:
		return form, svcerrors.Validation("Invalid product image")
	}
	defer file.Close()

	data, tooLong, err := httputil.ReadAllWithLimit(file, admin.MaxImageBytes)
	if err != nil {
		return form, svcerrors.Validation("Invalid product image")
	}
	if tooLong {
		return form, svcerrors.FieldErrors("Invalid product form", map[string]string{"image": "uploaded image exceeds 5 MiB"})
	}
	if len(data) > 0 {
		form.Image = &admin.Upload{
			Filename:    header.Filename,
			ContentType: strings.TrimSpace(header.Header.Get("Content-Type")),
			Data:        data,
		}
	}
	return form, nil
}
