package bookstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunneml/opencqrs-sub001/pkg/escore"
)

func TestAddBorrowReturnLifecycle(t *testing.T) {
	app, client := newTestApp(t)

	isbn, err := app.Router.Send(context.Background(), AddBookCommand{ISBN: "X", Title: "Go in Practice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "X", isbn)

	_, err = app.Router.Send(context.Background(), BorrowBookCommand{ISBN: "X", Reader: "R"}, nil)
	require.NoError(t, err)

	_, err = app.Router.Send(context.Background(), BorrowBookCommand{ISBN: "X", Reader: "R2"}, nil)
	require.Error(t, err, "a book already on loan cannot be borrowed again")

	_, err = app.Router.Send(context.Background(), ReturnBookCommand{ISBN: "X"}, nil)
	require.NoError(t, err)

	_, err = app.Router.Send(context.Background(), BorrowBookCommand{ISBN: "X", Reader: "R2"}, nil)
	require.NoError(t, err, "a returned book can be borrowed again")

	events, err := client.ReadStreamAll(context.Background(), "/books/X")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "book.added.v1", events[0].Type)
	assert.Equal(t, "book.lent.v1", events[1].Type)
	assert.Equal(t, "book.returned.v1", events[2].Type)
	assert.Equal(t, "book.lent.v1", events[3].Type)
}

func TestAddBookRejectsDuplicateISBN(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := app.Router.Send(context.Background(), AddBookCommand{ISBN: "X", Title: "First"}, nil)
	require.NoError(t, err)

	_, err = app.Router.Send(context.Background(), AddBookCommand{ISBN: "X", Title: "Duplicate"}, nil)
	require.Error(t, err)
	assert.True(t, escore.IsSubjectAlreadyExists(err))
}

func TestBorrowNonexistentBookFails(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := app.Router.Send(context.Background(), BorrowBookCommand{ISBN: "nope", Reader: "R"}, nil)
	require.Error(t, err)
}
