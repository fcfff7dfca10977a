package validator

import (
	"bytes"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/voxelhub/community-backend/errors"
)

func TestValidateMinecraftName(t *testing.T) {
	c := qt.New(t)

	type TestStruct struct {
		Name string `validate:"omitempty,mcname"`
	}
	v := New()

	for _, name := range []string{"Steve", "alex_99", "Notch", "abc", "A234567890123456"} {
		c.Assert(v.Validate(&TestStruct{Name: name}), qt.IsNil, qt.Commentf("name %q", name))
	}
	for _, name := range []string{"ab", "A2345678901234567", "with space", "dash-name", "ñandú"} {
		c.Assert(v.Validate(&TestStruct{Name: name}), qt.IsNotNil, qt.Commentf("name %q", name))
	}
	// empty is valid unless required
	c.Assert(v.Validate(&TestStruct{}), qt.IsNil)
}

func TestValidateCurrencyAndServerAddress(t *testing.T) {
	c := qt.New(t)

	type TestStruct struct {
		Currency string `validate:"omitempty,currency"`
		Address  string `validate:"omitempty,serveraddr"`
	}
	v := New()

	c.Assert(v.Validate(&TestStruct{Currency: "eur", Address: "play.example.net"}), qt.IsNil)
	c.Assert(v.Validate(&TestStruct{Address: "mc.example.net:25565"}), qt.IsNil)
	c.Assert(v.Validate(&TestStruct{Currency: "EUR"}), qt.IsNotNil)
	c.Assert(v.Validate(&TestStruct{Currency: "euro"}), qt.IsNotNil)
	c.Assert(v.Validate(&TestStruct{Address: "localhost"}), qt.IsNotNil)
	c.Assert(v.Validate(&TestStruct{Address: "http://play.example.net"}), qt.IsNotNil)
}

func TestDecodeJSON(t *testing.T) {
	c := qt.New(t)
	v := New()

	type orderRequest struct {
		MinecraftName string `json:"minecraftName" validate:"required,mcname"`
		Quantity      int    `json:"quantity" validate:"required,min=1,max=64"`
	}
	decode := func(body string) (*orderRequest, error) {
		r := httptest.NewRequest(http.MethodPost, "/shop/orders", bytes.NewBufferString(body))
		req := &orderRequest{}
		return req, v.DecodeJSON(r, req)
	}

	req, err := decode(`{"minecraftName":"Steve","quantity":2}`)
	c.Assert(err, qt.IsNil)
	c.Assert(req.MinecraftName, qt.Equals, "Steve")
	c.Assert(req.Quantity, qt.Equals, 2)

	_, err = decode(`not json`)
	c.Assert(stderrors.Is(err, errors.ErrMalformedBody), qt.IsTrue)

	_, err = decode(`{"minecraftName":"x","quantity":100}`)
	c.Assert(stderrors.Is(err, errors.ErrMalformedBody), qt.IsTrue)
	var apiErr errors.Error
	c.Assert(stderrors.As(err, &apiErr), qt.IsTrue)
	fields, ok := apiErr.Data.(ValidationErrors)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fields, qt.HasLen, 2)
	c.Assert(fields[0].Field, qt.Equals, "MinecraftName")
	c.Assert(fields[1].Field, qt.Equals, "Quantity")
}
