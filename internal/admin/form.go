package admin

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/snapzone/storefront/internal/catalog"
	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/money"
	"github.com/snapzone/storefront/internal/validation"
)

// MaxImageBytes bounds an uploaded product image.
const MaxImageBytes = 5 << 20

// Upload is an image file sent with the product form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DataURL embeds the upload as a data: URL.
func (u *Upload) DataURL() string {
	return "data:" + u.ContentType + ";base64," + base64.StdEncoding.EncodeToString(u.Data)
}

// ProductForm is the admin "add product" form. Price and stock arrive as
// text, the way a form posts them.
type ProductForm struct {
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description" validate:"required"`
	Price         string `json:"price" validate:"required"`
	ImageURL      string `json:"image_url" validate:"omitempty,url"`
	Size          string `json:"size" validate:"required"`
	Category      string `json:"category" validate:"required"`
	Material      string `json:"material" validate:"required,oneof=matt glassy"`
	StockQuantity string `json:"stock_quantity" validate:"required"`

	Image *Upload `json:"-"`
}

var validate = validation.New()

func (f ProductForm) normalize() ProductForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Price = strings.TrimSpace(f.Price)
	f.ImageURL = strings.TrimSpace(f.ImageURL)
	f.Size = strings.TrimSpace(f.Size)
	f.Category = strings.TrimSpace(f.Category)
	f.Material = strings.TrimSpace(f.Material)
	f.StockQuantity = strings.TrimSpace(f.StockQuantity)
	return f
}

// parsed is a validated form.
type parsed struct {
	product catalog.NewProduct
	image   *Upload
}

// parse validates the form and converts it into an insert payload. The image
// URL is left empty when an upload is to be stored instead.
func (f ProductForm) parse() (*parsed, error) {
	f = f.normalize()
	fields := map[string]string{}

	if err := validate.Struct(f); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
		} else {
			return nil, svcerrors.Validation("Invalid product form")
		}
	}

	var price decimal.Decimal
	if _, bad := fields["price"]; !bad {
		p, err := money.Parse(f.Price)
		if err != nil {
			fields["price"] = "must be a non-negative amount"
		}
		price = p
	}

	stock := 0
	if _, bad := fields["stock_quantity"]; !bad {
		n, err := strconv.Atoi(f.StockQuantity)
		if err != nil || n < 0 {
			fields["stock_quantity"] = "must be a whole number of at least 0"
		}
		stock = n
	}

	if f.Image != nil {
		if msg := checkImage(f.Image); msg != "" {
			fields["image"] = msg
		}
	} else if f.ImageURL == "" {
		if _, bad := fields["image_url"]; !bad {
			fields["image_url"] = "an image URL or an uploaded image is required"
		}
	}

	if len(fields) > 0 {
		return nil, svcerrors.FieldErrors("Invalid product form", fields)
	}

	np := catalog.NewProduct{
		Name:          f.Name,
		Description:   f.Description,
		Price:         price,
		ImageURL:      f.ImageURL,
		Category:      f.Category,
		Material:      f.Material,
		Size:          f.Size,
		Dimensions:    f.Size,
		StockQuantity: stock,
		Featured:      false,
	}
	if f.Image != nil {
		np.ImageURL = ""
	}
	return &parsed{product: np, image: f.Image}, nil
}

func checkImage(u *Upload) string {
	if len(u.Data) == 0 {
		return "uploaded image is empty"
	}
	if len(u.Data) > MaxImageBytes {
		return "uploaded image exceeds 5 MiB"
	}
	if u.ContentType == "" || u.ContentType == "application/octet-stream" {
		u.ContentType = http.DetectContentType(u.Data)
	}
	if !strings.HasPrefix(u.ContentType, "image/") {
		return "uploaded file is not an image"
	}
	return ""
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	}
	return "invalid"
}
