package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/core/mock"
)

func TestNewConnection_ValidateError(t *testing.T) {
	r := require.New(t)

	validateErr := core.Errorf(core.ErrConfiguration, "validate", "missing base_url")
	_, err := core.NewConnection(&core.ConnectionConfig{}, mock.NewAdapter(nil, mock.AdapterWithValidateError(validateErr)))
	r.ErrorIs(err, core.ErrConfiguration)
}

func TestConnection_AssignsID(t *testing.T) {
	r := require.New(t)

	c1 := newTestConnection(t, mock.NewAdapter(nil))
	c2 := newTestConnection(t, mock.NewAdapter(nil))
	r.NotEmpty(c1.GetID())
	r.NotEqual(c1.GetID(), c2.GetID())

	named, err := core.NewConnection(&core.ConnectionConfig{ID: "fixed"}, mock.NewAdapter(nil))
	r.NoError(err)
	r.Equal(core.ConnectionID("fixed"), named.GetID())
}

func TestConnection_ConnectErrorIsTerminal(t *testing.T) {
	r := require.New(t)

	connectErr := errors.New("dial failed")
	c := newTestConnection(t, mock.NewAdapter(nil, mock.AdapterWithConnectError(connectErr)))

	_, err := c.Run(context.Background(), &core.Query{Table: "documents"})
	r.ErrorIs(err, connectErr)

	ok, err := c.CheckConnection(context.Background())
	r.False(ok)
	r.ErrorIs(err, connectErr)
}

func TestConnection_CheckConnection(t *testing.T) {
	r := require.New(t)

	ok, err := newTestConnection(t, mock.NewAdapter(nil)).CheckConnection(context.Background())
	r.NoError(err)
	r.True(ok)

	pingErr := core.Errorf(core.ErrAuthentication, "ping", "expired token")
	ok, err = newTestConnection(t, mock.NewAdapter(nil, mock.AdapterWithPingError(pingErr))).CheckConnection(context.Background())
	r.False(ok)
	r.ErrorIs(err, core.ErrAuthentication)
}

func TestConnection_Structure(t *testing.T) {
	r := require.New(t)

	columns := []*core.Column{{Name: "id", Type: "string"}}

	c := newTestConnection(t, mock.NewAdapter(nil, mock.AdapterWithTableDefinition("documents", columns)))

	structure, err := c.GetStructure(context.Background())
	r.NoError(err)
	r.Len(structure, 1)
	r.Equal("documents", structure[0].Name)
	r.Equal(core.StructureTypeTable, structure[0].Type)

	actual, err := c.GetColumns(context.Background(), "documents")
	r.NoError(err)
	r.Equal(columns, actual)

	// empty structure gets a placeholder
	empty := newTestConnection(t, mock.NewAdapter(nil))
	structure, err = empty.GetStructure(context.Background())
	r.NoError(err)
	r.Len(structure, 1)
	r.Equal(core.StructureTypeNone, structure[0].Type)
}

func TestConnection_Insert(t *testing.T) {
	r := require.New(t)

	c := newTestConnection(t, mock.NewAdapter(nil, mock.AdapterWithTableDefinition("documents", nil)))

	statuses, err := c.Insert(context.Background(), "documents", []map[string]any{{"name": "a"}, {"name": "b"}})
	r.NoError(err)
	r.Len(statuses, 2)
	r.True(statuses[1].OK)
	r.Equal(1, statuses[1].Index)
}
