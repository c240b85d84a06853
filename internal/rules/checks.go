package rules

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/normalize"
)

// Issue codes.
const (
	CodeManifestIDMissing  = "MANIFEST_ID_MISSING"
	CodeHSMissing          = "HS_CODE_MISSING"
	CodeHSNonNumeric       = "HS_CODE_NON_NUMERIC"
	CodeHSLength           = "HS_CODE_LENGTH"
	CodeHSPadding          = "HS_CODE_PADDING"
	CodeHSRange            = "HS_CODE_RANGE"
	CodeDutyMissing        = "DUTY_MISSING"
	CodeDutyMismatch       = "DUTY_MISMATCH"
	CodeValueInvalid       = "VALUE_INVALID"
	CodeQuantityInvalid    = "QUANTITY_INVALID"
	CodeUOMMissing         = "UOM_MISSING"
	CodeCountryInvalid     = "COUNTRY_INVALID"
	CodeCountryName        = "COUNTRY_NAME"
	CodeDescriptionMissing = "DESCRIPTION_MISSING"
	CodeDateFormat         = "DATE_FORMAT"
)

var hundred = decimal.NewFromInt(100)

type manifestIDRule struct{}

func (manifestIDRule) Name() string { return "manifest_id" }

func (manifestIDRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	if !cols.Has(manifest.FieldManifestID) || rec.Get(manifest.FieldManifestID) != "" {
		return nil
	}
	return []manifest.Issue{{
		Severity:   manifest.SeverityCritical,
		Confidence: 1.0,
		Field:      manifest.FieldManifestID,
		Code:       CodeManifestIDMissing,
		Message:    "Manifest ID is blank",
		Rationale:  "Entries that cannot be tied to a manifest are rejected at filing.",
		Suggestion: "Enter the manifest or shipment number, or let correction assign a generated identifier.",
	}}
}

type hsCodeRule struct {
	rng *Range
}

func (hsCodeRule) Name() string { return "hs_code" }

func (r hsCodeRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	if !cols.Has(manifest.FieldHSCode) {
		return nil
	}
	raw := rec.Get(manifest.FieldHSCode)
	ctx := map[string]string{"hs_code": raw}

	if raw == "" {
		return []manifest.Issue{{
			Severity: manifest.SeverityHigh, Confidence: 1.0, Field: manifest.FieldHSCode,
			Code:       CodeHSMissing,
			Message:    "HS code is blank",
			Rationale:  "Every line item needs a tariff classification to assess duty.",
			Suggestion: "Classify the goods and enter a 6 to 10 digit HS code.",
			Context:    ctx,
		}}
	}

	digits := normalize.HSDigits(raw)
	if !normalize.IsDigits(digits) {
		return []manifest.Issue{{
			Severity: manifest.SeverityHigh, Confidence: 0.95, Field: manifest.FieldHSCode,
			Code:       CodeHSNonNumeric,
			Message:    fmt.Sprintf("HS code %q contains non-numeric characters", raw),
			Rationale:  "HS codes are purely numeric; letters usually mean a product SKU was entered instead.",
			Suggestion: "Replace the value with the numeric HS classification.",
			Context:    ctx,
		}}
	}

	if len(digits) < 6 || len(digits) > 10 {
		is := manifest.Issue{
			Severity: manifest.SeverityHigh, Confidence: 0.9, Field: manifest.FieldHSCode,
			Code:       CodeHSLength,
			Message:    fmt.Sprintf("HS code %s has %d digits, expected 6 to 10", digits, len(digits)),
			Rationale:  "Codes shorter than the six digit subheading cannot be classified.",
			Suggestion: "Check the code against the tariff schedule.",
			Context:    ctx,
		}
		if len(digits) < 6 {
			is.Autofix = manifest.Fix(normalize.HSCode(digits))
			is.Suggestion = fmt.Sprintf("Leading zeros may have been dropped; try %s.", *is.Autofix)
		}
		return []manifest.Issue{is}
	}

	var issues []manifest.Issue
	if normalize.NeedsHSPadding(digits) {
		fixed := "0" + digits
		issues = append(issues, manifest.Issue{
			Severity: manifest.SeverityMedium, Confidence: 0.9, Field: manifest.FieldHSCode,
			Code:       CodeHSPadding,
			Message:    fmt.Sprintf("HS code %s looks like it lost a leading zero", digits),
			Rationale:  "Spreadsheets strip leading zeros from numeric cells, shifting the chapter.",
			Suggestion: fmt.Sprintf("Use %s.", fixed),
			Autofix:    manifest.Fix(fixed),
			Context:    ctx,
		})
	}

	if r.rng != nil {
		prefix, _ := strconv.Atoi(digits[:4])
		if prefix < r.rng.Min || prefix > r.rng.Max {
			issues = append(issues, manifest.Issue{
				Severity: manifest.SeverityMedium, Confidence: 0.5, Field: manifest.FieldHSCode,
				Code:       CodeHSRange,
				Message:    fmt.Sprintf("HS heading %04d is outside the expected range %d-%d", prefix, r.rng.Min, r.rng.Max),
				Rationale:  "This manifest is expected to carry goods from a narrow set of chapters.",
				Suggestion: "Verify the classification.",
				Context:    ctx,
			})
		}
	}
	return issues
}

type dutyRule struct {
	tolerance decimal.Decimal
}

func (dutyRule) Name() string { return "duty" }

// ExpectedDuty returns value * rate / 100.
func ExpectedDuty(value, rate decimal.Decimal) decimal.Decimal {
	return value.Mul(rate).Div(hundred)
}

func (r dutyRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	if !cols.Has(manifest.FieldTotalValue) || !cols.Has(manifest.FieldTariffRate) || !cols.Has(manifest.FieldDuty) {
		return nil
	}
	value, okV := normalize.Number(rec.Get(manifest.FieldTotalValue))
	rate, okR := normalize.Number(rec.Get(manifest.FieldTariffRate))
	if !okV || !okR || value.IsZero() {
		return nil
	}

	expected := ExpectedDuty(value, rate)
	rawDuty := rec.Get(manifest.FieldDuty)
	ctx := map[string]string{
		"total_value": rec.Get(manifest.FieldTotalValue),
		"tariff_rate": rec.Get(manifest.FieldTariffRate),
		"duty":        rawDuty,
		"expected":    normalize.Money(expected),
	}

	duty, okD := normalize.Number(rawDuty)
	if !okD || duty.IsZero() {
		return []manifest.Issue{{
			Severity: manifest.SeverityHigh, Confidence: 0.9, Field: manifest.FieldDuty,
			Code:       CodeDutyMissing,
			Message:    fmt.Sprintf("Duty is missing; expected $%s", normalize.Money(expected)),
			Rationale:  "Undeclared duty on dutiable goods delays clearance and can draw penalties.",
			Suggestion: fmt.Sprintf("Declare duty of %s (value %s at %s%%).", normalize.Money(expected), value, rate),
			Autofix:    manifest.Fix(normalize.Money(expected)),
			Context:    ctx,
		}}
	}

	if duty.Sub(expected).Abs().GreaterThan(r.tolerance) {
		return []manifest.Issue{{
			Severity: manifest.SeverityHigh, Confidence: 0.85, Field: manifest.FieldDuty,
			Code:       CodeDutyMismatch,
			Message:    fmt.Sprintf("Duty $%s does not match expected $%s", normalize.Money(duty), normalize.Money(expected)),
			Rationale:  "Declared duty must equal value times the tariff rate.",
			Suggestion: "Recalculate duty or confirm the tariff rate.",
			Autofix:    manifest.Fix(normalize.Money(expected)),
			Context:    ctx,
		}}
	}
	return nil
}

type valueRule struct{}

func (valueRule) Name() string { return "value" }

func (valueRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	var issues []manifest.Issue
	for _, f := range []manifest.Field{manifest.FieldTotalValue, manifest.FieldUnitValue} {
		if !cols.Has(f) {
			continue
		}
		raw := rec.Get(f)
		if f == manifest.FieldUnitValue && raw == "" {
			continue
		}
		if v, ok := normalize.Number(raw); ok && !v.IsNegative() {
			continue
		}
		issues = append(issues, manifest.Issue{
			Severity: manifest.SeverityHigh, Confidence: 0.95, Field: f,
			Code:       CodeValueInvalid,
			Message:    fmt.Sprintf("Value %q is not a non-negative number", raw),
			Rationale:  "Customs value is the basis for duty and must be a valid amount.",
			Suggestion: "Enter the declared value as a number, without text.",
			Context:    map[string]string{string(f): raw},
		})
	}
	return issues
}

type quantityRule struct{}

func (quantityRule) Name() string { return "quantity" }

func (quantityRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	if !cols.Has(manifest.FieldQuantity) {
		return nil
	}
	var issues []manifest.Issue

	raw := rec.Get(manifest.FieldQuantity)
	if q, ok := normalize.Number(raw); !ok || !q.IsPositive() {
		issues = append(issues, manifest.Issue{
			Severity: manifest.SeverityHigh, Confidence: 0.95, Field: manifest.FieldQuantity,
			Code:       CodeQuantityInvalid,
			Message:    fmt.Sprintf("Quantity %q must be a number greater than zero", raw),
			Rationale:  "A line item with no positive quantity cannot be reconciled against the cargo.",
			Suggestion: "Enter the shipped quantity.",
			Context:    map[string]string{"quantity": raw},
		})
	}

	if rec.Get(manifest.FieldUOM) == "" {
		issues = append(issues, manifest.Issue{
			Severity: manifest.SeverityMedium, Confidence: 0.9, Field: manifest.FieldUOM,
			Code:       CodeUOMMissing,
			Message:    "Unit of measure is missing for the quantity",
			Rationale:  "Quantities are meaningless without a unit such as PCS or KG.",
			Suggestion: "Add the unit of measure.",
			Context:    map[string]string{"quantity": raw},
		})
	}
	return issues
}

type countryRule struct{}

func (countryRule) Name() string { return "country" }

func (countryRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	var issues []manifest.Issue
	for _, f := range []manifest.Field{manifest.FieldOrigin, manifest.FieldDestination} {
		if !cols.Has(f) {
			continue
		}
		raw := rec.Get(f)
		switch {
		case normalize.IsCountryName(raw):
			code := normalize.Country(raw)
			issues = append(issues, manifest.Issue{
				Severity: manifest.SeverityLow, Confidence: 0.9, Field: f,
				Code:       CodeCountryName,
				Message:    fmt.Sprintf("%s %q is a country name rather than an ISO code", f, raw),
				Rationale:  "Filing systems expect two-letter ISO country codes.",
				Suggestion: fmt.Sprintf("Use %s.", code),
				Autofix:    manifest.Fix(code),
				Context:    map[string]string{string(f): raw},
			})
		case !normalize.ValidCountry(raw):
			issues = append(issues, manifest.Issue{
				Severity: manifest.SeverityMedium, Confidence: 0.8, Field: f,
				Code:       CodeCountryInvalid,
				Message:    fmt.Sprintf("%s %q is not a recognizable country", f, raw),
				Rationale:  "Origin and destination drive preferential rates and restrictions.",
				Suggestion: "Enter a two-letter ISO country code.",
				Context:    map[string]string{string(f): raw},
			})
		}
	}
	return issues
}

type descriptionRule struct{}

func (descriptionRule) Name() string { return "description" }

func (descriptionRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	if !cols.Has(manifest.FieldDescription) || validDescription(rec.Get(manifest.FieldDescription)) {
		return nil
	}
	raw := rec.Get(manifest.FieldDescription)
	return []manifest.Issue{{
		Severity: manifest.SeverityMedium, Confidence: 0.85, Field: manifest.FieldDescription,
		Code:       CodeDescriptionMissing,
		Message:    "Goods description is missing or not descriptive",
		Rationale:  "Officers compare the description with the HS code during inspection.",
		Suggestion: "Describe the goods in plain words, for example \"Laptop computer\".",
		Context:    map[string]string{"description": raw},
	}}
}

type dateRule struct{}

func (dateRule) Name() string { return "date" }

func (dateRule) Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	if !cols.Has(manifest.FieldDate) {
		return nil
	}
	raw := rec.Get(manifest.FieldDate)
	if raw == "" || normalize.IsCanonicalDate(raw) {
		return nil
	}
	is := manifest.Issue{
		Severity: manifest.SeverityLow, Confidence: 0.8, Field: manifest.FieldDate,
		Code:       CodeDateFormat,
		Message:    fmt.Sprintf("Date %q is not in YYYY-MM-DD form", raw),
		Rationale:  "Ambiguous date formats are read differently across jurisdictions.",
		Suggestion: "Write dates as YYYY-MM-DD.",
		Context:    map[string]string{"date": raw},
	}
	if fixed, ok := normalize.ParseDate(raw); ok {
		is.Autofix = manifest.Fix(fixed)
	}
	return []manifest.Issue{is}
}
