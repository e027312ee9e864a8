package services

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"consulta_ciudadana_go/models"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// MaxMessageLength bounds the free-text message of a consultation
	MaxMessageLength = 5000
	// MaxSelectedSectors bounds how many sectors a citizen may tag
	MaxSelectedSectors = 20
)

var (
	identityPattern = regexp.MustCompile(`^(\d{13}|\d{4}-\d{4}-\d{5})$`)
	rtnPattern      = regexp.MustCompile(`^(\d{14}|\d{4}-\d{4}-\d{6})$`)
	phonePattern    = regexp.MustCompile(`^\d{8}$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

var validate = newConsultationValidator()

var strictPolicy = bluemonday.StrictPolicy()

// ValidationError carries field-path to message pairs back to the client
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// ConsultationInput is the typed shape of a public submission (and of an admin edit)
type ConsultationInput struct {
	PersonType string `json:"personType" validate:"required,oneof=natural juridica anonimo"`

	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Identity  string `json:"identity" validate:"omitempty,hn_identity"`

	CompanyName         string `json:"companyName" validate:"max=200"`
	RTN                 string `json:"rtn" validate:"omitempty,hn_rtn"`
	LegalRepresentative string `json:"legalRepresentative" validate:"max=200"`
	CompanyContact      string `json:"companyContact" validate:"omitempty,email|hn_phone"`

	Email  string `json:"email" validate:"omitempty,email,max=150"`
	Mobile string `json:"mobile" validate:"omitempty,hn_phone"`

	DepartmentID   string   `json:"departmentId" validate:"required,max=2"`
	MunicipalityID string   `json:"municipalityId" validate:"required,max=16"`
	Zone           string   `json:"zone" validate:"omitempty,oneof=urbano rural"`
	LocalityID     string   `json:"localityId" validate:"max=24"`
	CustomLocality string   `json:"customLocality" validate:"max=200"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`

	Message         string   `json:"message" validate:"required,max=5000"`
	SelectedSectors []string `json:"selectedSectors" validate:"max=20,dive,max=100"`
}

func newConsultationValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report errors using the JSON field names the client sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "hn_identity", identityPattern)
	mustRegister(v, "hn_rtn", rtnPattern)
	mustRegister(v, "hn_phone", phonePattern)
	return v
}

func mustRegister(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Normalize trims every field, strips markup from the message, canonicalizes
// phone numbers and de-duplicates sectors while keeping their order.
func (in *ConsultationInput) Normalize() {
	in.PersonType = strings.ToLower(strings.TrimSpace(in.PersonType))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Identity = strings.TrimSpace(in.Identity)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.RTN = strings.TrimSpace(in.RTN)
	in.LegalRepresentative = strings.TrimSpace(in.LegalRepresentative)
	in.CompanyContact = strings.TrimSpace(in.CompanyContact)
	if in.CompanyContact != "" && !strings.Contains(in.CompanyContact, "@") {
		in.CompanyContact = phoneSeparators.Replace(in.CompanyContact)
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Mobile = phoneSeparators.Replace(strings.TrimSpace(in.Mobile))
	in.DepartmentID = strings.TrimSpace(in.DepartmentID)
	in.MunicipalityID = strings.TrimSpace(in.MunicipalityID)
	in.Zone = strings.ToLower(strings.TrimSpace(in.Zone))
	in.LocalityID = strings.TrimSpace(in.LocalityID)
	in.CustomLocality = strings.TrimSpace(in.CustomLocality)
	in.Message = strings.TrimSpace(stripMarkup(in.Message))

	seen := make(map[string]bool, len(in.SelectedSectors))
	sectors := make([]string, 0, len(in.SelectedSectors))
	for _, s := range in.SelectedSectors {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		sectors = append(sectors, s)
	}
	in.SelectedSectors = sectors
}

// stripMarkup returns s as plain text. Entity-encoded markup is decoded and
// stripped again until nothing changes, so "&lt;script&gt;" cannot come back
// as a tag.
func stripMarkup(s string) string {
	for i := 0; i < 8; i++ {
		clean := html.UnescapeString(strictPolicy.Sanitize(s))
		if clean == s {
			return s
		}
		s = clean
	}
	return strictPolicy.Sanitize(s)
}

// ValidateConsultationInput normalizes the input and checks shape, person-type
// rules and location completeness. It never touches the database; referential
// integrity is checked separately by ResolveLocation.
func ValidateConsultationInput(in *ConsultationInput) *ValidationError {
	in.Normalize()
	fields := make(map[string]string)

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			fields["_"] = "Datos inválidos"
			return &ValidationError{Fields: fields}
		}
		for _, fe := range verrs {
			path := fe.Namespace()
			if i := strings.Index(path, "."); i >= 0 {
				path = path[i+1:]
			}
			if _, exists := fields[path]; !exists {
				fields[path] = fieldErrorMessage(fe)
			}
		}
	}

	switch models.PersonType(in.PersonType) {
	case models.PersonNatural:
		requireField(fields, "firstName", in.FirstName, "El nombre es requerido")
		requireField(fields, "lastName", in.LastName, "El apellido es requerido")
		requireField(fields, "identity", in.Identity, "La identidad es requerida")
	case models.PersonJuridica:
		requireField(fields, "companyName", in.CompanyName, "El nombre de la empresa es requerido")
		requireField(fields, "rtn", in.RTN, "El RTN es requerido")
		requireField(fields, "legalRepresentative", in.LegalRepresentative, "El representante legal es requerido")
		requireField(fields, "companyContact", in.CompanyContact, "El contacto de la empresa es requerido")
	case models.PersonAnonimo:
		forbidden := map[string]string{
			"firstName":           in.FirstName,
			"lastName":            in.LastName,
			"identity":            in.Identity,
			"companyName":         in.CompanyName,
			"rtn":                 in.RTN,
			"legalRepresentative": in.LegalRepresentative,
			"companyContact":      in.CompanyContact,
		}
		for field, value := range forbidden {
			if value != "" {
				fields[field] = "No se permite en consultas anónimas"
			}
		}
		if in.Email == "" && in.Mobile == "" {
			fields["contact"] = "Debe indicar un correo electrónico o un teléfono de contacto"
		}
	}

	// A catalogue locality carries its own area; a custom one needs the zone
	if in.LocalityID == "" {
		requireField(fields, "zone", in.Zone, "Este campo es requerido")
		if in.CustomLocality == "" {
			fields["localityId"] = "Seleccione una localidad o indique el nombre de su localidad"
		}
		if in.Latitude == nil || in.Longitude == nil {
			fields["coordinates"] = "Marque la ubicación en el mapa"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func requireField(fields map[string]string, name, value, message string) {
	if value == "" {
		if _, exists := fields[name]; !exists {
			fields[name] = message
		}
	}
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es requerido"
	case "oneof":
		return "Valor inválido, opciones: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "Correo electrónico inválido"
	case "email|hn_phone":
		return "Debe ser un correo electrónico o un teléfono de 8 dígitos"
	case "hn_identity":
		return "La identidad debe tener 13 dígitos (ej. 0801-1990-12345)"
	case "hn_rtn":
		return "El RTN debe tener 14 dígitos (ej. 0801-1990-123456)"
	case "hn_phone":
		return "El teléfono debe tener 8 dígitos"
	case "min", "max":
		if fe.Kind() == reflect.Float64 || fe.Kind() == reflect.Float32 {
			return "Coordenada fuera de rango"
		}
		return "Longitud no permitida (máximo " + fe.Param() + ")"
	}
	return "Valor inválido"
}
