package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/hook"
)

// readBody returns the request body, or nil when it is blank.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// decodeString reads a string, accepting numbers and null. The host sends
// identifiers in either form.
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return d.Str()
	}
}

// fieldErr prefixes a decoding error with the offending field.
func fieldErr(key string, err error) error {
	if err != nil {
		return errors.Wrap(err, key)
	}
	return nil
}

func decodeBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

// hookPayload is the body of hook and filter calls.
type hookPayload struct {
	req      hook.Request
	value    bool
	hasValue bool
}

func decodeHookPayload(data []byte) (*hookPayload, error) {
	p := &hookPayload{req: hook.Request{Page: hook.PageOther}}
	if data == nil {
		return p, nil
	}

	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "session_id":
			p.req.SessionID, err = decodeString(d)
		case "admin":
			p.req.Admin, err = decodeBool(d)
		case "page":
			var page string
			page, err = decodeString(d)
			if page != "" {
				p.req.Page = hook.Page(page)
			}
		case "page_id":
			p.req.PageID, err = decodeString(d)
		case "order_id":
			p.req.OrderID, err = decodeString(d)
		case "value":
			p.hasValue = true
			p.value, err = decodeBool(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func encodeStrings(e *jx.Encoder, field string, values []string) {
	e.FieldStart(field)
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeDirectives(req *hook.Request) []byte {
	var e jx.Encoder
	e.ObjStart()
	encodeStrings(&e, "styles", req.Styles())
	encodeStrings(&e, "removed_components", req.RemovedComponents())
	e.ObjEnd()
	return e.Bytes()
}

func encodeValue(v bool) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("value")
	e.Bool(v)
	e.ObjEnd()
	return e.Bytes()
}

func encodeInfo(info *referral.Info) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("start_date")
	e.Str(info.StartDate)
	e.FieldStart("end_date")
	e.Str(info.EndDate)
	e.FieldStart("start_date_formatted")
	e.Str(info.StartDateFormatted)
	e.FieldStart("end_date_formatted")
	e.Str(info.EndDateFormatted)
	e.FieldStart("margin_days")
	e.Int(info.MarginDays)
	e.FieldStart("discount_period_months")
	e.Int(info.DiscountPeriodMonths)
	e.ObjEnd()
	return e.Bytes()
}

// decodeReferralCode reads the optional {"referral_code": "..."} body.
func decodeReferralCode(data []byte) (string, error) {
	var code string
	if data == nil {
		return code, nil
	}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "referral_code" {
			return d.Skip()
		}
		var err error
		code, err = decodeString(d)
		return fieldErr(key, err)
	})
	return code, err
}

// decodeID reads a product identifier sent as a number or a numeric string.
// Null and "" read as zero.
func decodeID(d *jx.Decoder) (cart.ProductID, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return 0, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid id %q", s)
	}
	return cart.ProductID(id), nil
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			l.ProductID, err = decodeID(d)
		case "variation_id":
			l.VariationID, err = decodeID(d)
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	if err != nil {
		return l, err
	}
	if l.ProductID <= 0 {
		return l, errors.New("product_id must be positive")
	}
	return l, nil
}

// decodeCart reads {"lines": [...]}. A missing or blank body is an empty cart.
func decodeCart(data []byte) ([]cart.Line, error) {
	lines := []cart.Line{}
	if data == nil {
		return lines, nil
	}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "lines" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			l, err := decodeLine(d)
			if err != nil {
				return errors.Wrapf(err, "line %d", len(lines))
			}
			lines = append(lines, l)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes {"code": status, "message": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}
