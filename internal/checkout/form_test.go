package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/snapzone/storefront/internal/errors"
)

func TestFormValidate(t *testing.T) {
	valid := Form{Name: "Asha", Phone: "9876543210", Address: "12 Race Course Rd", Zone: ZoneWithin}
	require.NoError(t, valid.Validate())

	withEmail := valid
	withEmail.Email = "asha@example.com"
	require.NoError(t, withEmail.Validate())

	cases := []struct {
		name  string
		form  Form
		field string
		msg   string
	}{
		{"missing name", Form{Phone: "1", Address: "x", Zone: ZoneWithin}, "name", "required"},
		{"missing phone", Form{Name: "a", Address: "x", Zone: ZoneWithin}, "phone", "required"},
		{"missing address", Form{Name: "a", Phone: "1", Zone: ZoneWithin}, "address", "required"},
		{"bad email", Form{Name: "a", Phone: "1", Address: "x", Email: "nope", Zone: ZoneWithin}, "email", "must be a valid email address"},
		{"missing zone", Form{Name: "a", Phone: "1", Address: "x"}, "zone", "required"},
		{"bad zone", Form{Name: "a", Phone: "1", Address: "x", Zone: "mars"}, "zone", "must be one of: within outside"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.form.Validate()
			require.Error(t, err)
			se := svcerrors.GetServiceError(err)
			require.NotNil(t, se)
			assert.Equal(t, svcerrors.CodeValidation, se.Code)
			fields, ok := se.Details["fields"].(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tc.msg, fields[tc.field])
		})
	}
}

func TestFormNormalize(t *testing.T) {
	f := Form{Name: "  Asha ", Phone: " 1 ", Address: "\tx\n", Zone: " outside "}.Normalize()
	assert.Equal(t, Form{Name: "Asha", Phone: "1", Address: "x", Zone: ZoneOutside}, f)

	blank := Form{Name: "   ", Phone: "1", Address: "x", Zone: ZoneWithin}.Normalize()
	assert.Error(t, blank.Validate())
}

func TestShippingAddress(t *testing.T) {
	p := testPolicy()

	full := Form{Name: "Asha", Phone: "98765", Email: "asha@example.com", Address: "12 Race Course Rd", Zone: ZoneOutside}
	assert.Equal(t, "Asha, 98765, asha@example.com, 12 Race Course Rd, Outside Coimbatore", full.ShippingAddress(p))

	noEmail := Form{Name: "Asha", Phone: "98765", Address: "12 Race Course Rd", Zone: ZoneWithin}
	assert.Equal(t, "Asha, 98765, 12 Race Course Rd, Within Coimbatore", noEmail.ShippingAddress(p))
}
