package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"storefront/internal/medusa"
)

type addItemForm struct {
	VariantID string `form:"variant_id" json:"variant_id" validate:"required"`
	Quantity  int    `form:"quantity" json:"quantity" validate:"gte=1,lte=99"`
}

type quantityForm struct {
	Quantity int `form:"quantity" validate:"gte=0,lte=99"`
}

type promoForm struct {
	Code string `form:"code" validate:"required,max=64"`
}

type regionForm struct {
	CountryCode string `form:"country_code" validate:"required,len=2,alpha"`
	Next        string `form:"next"`
}

type addressForm struct {
	FirstName   string `form:"first_name" validate:"required,max=100"`
	LastName    string `form:"last_name" validate:"required,max=100"`
	Company     string `form:"company" validate:"max=100"`
	Address1    string `form:"address_1" validate:"required,max=200"`
	Address2    string `form:"address_2" validate:"max=200"`
	City        string `form:"city" validate:"required,max=100"`
	CountryCode string `form:"country_code" validate:"required,len=2,alpha"`
	Province    string `form:"province" validate:"max=100"`
	PostalCode  string `form:"postal_code" validate:"required,max=20"`
	Phone       string `form:"phone" validate:"max=40"`
}

func (f addressForm) address() medusa.Address {
	return medusa.Address{
		FirstName: f.FirstName, LastName: f.LastName, Company: f.Company,
		Address1: f.Address1, Address2: f.Address2, City: f.City,
		CountryCode: strings.ToLower(f.CountryCode), Province: f.Province,
		PostalCode: f.PostalCode, Phone: f.Phone,
	}
}

// Checkout posts both addresses in one form, told apart by field prefix.
// The field sets match addressForm so either converts to it.
type shippingAddressForm struct {
	FirstName   string `form:"shipping_first_name" validate:"required,max=100"`
	LastName    string `form:"shipping_last_name" validate:"required,max=100"`
	Company     string `form:"shipping_company" validate:"max=100"`
	Address1    string `form:"shipping_address_1" validate:"required,max=200"`
	Address2    string `form:"shipping_address_2" validate:"max=200"`
	City        string `form:"shipping_city" validate:"required,max=100"`
	CountryCode string `form:"shipping_country_code" validate:"required,len=2,alpha"`
	Province    string `form:"shipping_province" validate:"max=100"`
	PostalCode  string `form:"shipping_postal_code" validate:"required,max=20"`
	Phone       string `form:"shipping_phone" validate:"max=40"`
}

type billingAddressForm struct {
	FirstName   string `form:"billing_first_name" validate:"required,max=100"`
	LastName    string `form:"billing_last_name" validate:"required,max=100"`
	Company     string `form:"billing_company" validate:"max=100"`
	Address1    string `form:"billing_address_1" validate:"required,max=200"`
	Address2    string `form:"billing_address_2" validate:"max=200"`
	City        string `form:"billing_city" validate:"required,max=100"`
	CountryCode string `form:"billing_country_code" validate:"required,len=2,alpha"`
	Province    string `form:"billing_province" validate:"max=100"`
	PostalCode  string `form:"billing_postal_code" validate:"required,max=20"`
	Phone       string `form:"billing_phone" validate:"max=40"`
}

type checkoutEmailForm struct {
	Email         string `form:"email" validate:"required,email,max=254"`
	SameAsBilling bool   `form:"same_as_billing"`
}

type shippingForm struct {
	OptionID string `form:"shipping_option_id" validate:"required"`
}

type paymentForm struct {
	ProviderID string `form:"provider_id" validate:"required"`
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}

type registerForm struct {
	Email     string `form:"email" validate:"required,email,max=254"`
	Password  string `form:"password" validate:"required,min=8,max=128"`
	FirstName string `form:"first_name" validate:"required,max=100"`
	LastName  string `form:"last_name" validate:"required,max=100"`
	Phone     string `form:"phone" validate:"max=40"`
}

type profileForm struct {
	FirstName   string `form:"first_name" validate:"required,max=100"`
	LastName    string `form:"last_name" validate:"required,max=100"`
	Phone       string `form:"phone" validate:"max=40"`
	CompanyName string `form:"company_name" validate:"max=100"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// rawFields keep their whitespace; every other value is trimmed.
var rawFields = map[string]bool{"password": true}

// checkboxFields are sent as "on" by browsers that ignore the value attribute.
var checkboxFields = map[string]bool{"same_as_billing": true}

func normalizeForm(values url.Values) {
	for k, vs := range values {
		for i, v := range vs {
			if !rawFields[k] {
				v = strings.TrimSpace(v)
			}
			if checkboxFields[k] && v == "on" {
				v = "true"
			}
			vs[i] = v
		}
	}
}

type fieldError struct {
	field string
	msg   string
}

func (e fieldError) Error() string {
	if e.field == "" {
		return e.msg
	}
	return label(e.field) + ": " + e.msg
}

// bind decodes the posted form into dst with gin's form binding and
// validates it with the storefront validator.
func (s *Server) bind(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return fieldError{field: "form", msg: "Malformed form"}
	}
	normalizeForm(r.PostForm)
	if err := binding.FormPost.Bind(r, dst); err != nil {
		var num *strconv.NumError
		if errors.As(err, &num) {
			return fieldError{msg: fmt.Sprintf("%q is not a number", num.Num)}
		}
		return fieldError{field: "form", msg: "Malformed form"}
	}
	return s.validate.Struct(dst)
}

// isValidation reports whether err came from form decoding or validation.
func isValidation(err error) bool {
	var fe fieldError
	var ve validator.ValidationErrors
	return errors.As(err, &fe) || errors.As(err, &ve)
}

// validationMessage renders the first problem of a form for a toast.
func validationMessage(err error) string {
	var fe fieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		e := ve[0]
		return label(e.Field()) + ": " + fieldMessage(e)
	}
	return "Please check the form."
}

func label(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	s = strings.ReplaceAll(s, "address 1", "address")
	s = strings.ReplaceAll(s, "address 2", "address line 2")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "gte":
		return "Must be at least " + e.Param()
	case "lte":
		return "Must be at most " + e.Param()
	case "alpha":
		return "Must contain only letters"
	default:
		return fmt.Sprintf("Invalid value (%s)", e.Tag())
	}
}
