package platform

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiBase = "https://api.telegram.org"

func newTestClient() *Client {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	gock.InterceptClient(httpClient)
	return NewClient(apiBase, httpClient)
}

func TestCheckTokenValid(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot111:Aaa/getMe").
		Reply(200).
		BodyString(`{"ok":true,"result":{"id":111,"is_bot":true,"first_name":"Alpha","username":"AlphaBot"}}`)

	st, err := newTestClient().CheckToken(context.Background(), "111:Aaa")
	require.NoError(t, err)
	assert.True(t, st.OK)
	require.NotNil(t, st.Bot)
	assert.Equal(t, int64(111), st.Bot.ID)
	assert.Equal(t, "Alpha", st.Bot.FirstName)
	assert.Equal(t, "AlphaBot", st.Bot.Username)
}

func TestCheckTokenRejected(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot222:Bbb/getMe").
		Reply(401).
		BodyString(`{"ok":false,"error_code":401,"description":"Unauthorized"}`)

	st, err := newTestClient().CheckToken(context.Background(), "222:Bbb")
	require.NoError(t, err, "an upstream rejection is a verdict, not an error")
	assert.False(t, st.OK)
	assert.Nil(t, st.Bot)
}

func TestCheckTokenMalformedBody(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot333:Ccc/getMe").
		Reply(200).
		BodyString(`<html>not json</html>`)

	_, err := newTestClient().CheckToken(context.Background(), "333:Ccc")
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestCheckTokenOKWithoutResult(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot555:Eee/getMe").
		Reply(200).
		BodyString(`{"ok":true}`)

	_, err := newTestClient().CheckToken(context.Background(), "555:Eee")
	var te *TransportError
	require.ErrorAs(t, err, &te, "a positive verdict without a result is undecodable, not a rejection")
}

func TestCheckTokenMissingOKField(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot666:Fff/getMe").
		Reply(200).
		BodyString(`{"unexpected":"shape"}`)

	_, err := newTestClient().CheckToken(context.Background(), "666:Fff")
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestCheckTokenServerError(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot444:Ddd/getMe").
		Reply(500).
		BodyString(`Internal Server Error`)

	_, err := newTestClient().CheckToken(context.Background(), "444:Ddd")
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestFetchAllPreservesOrder(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot1:A/getMe").
		Reply(200).
		Delay(50 * time.Millisecond).
		BodyString(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"First","username":"FirstBot"}}`)
	gock.New(apiBase).
		Get("/bot2:B/getMe").
		Reply(401).
		BodyString(`{"ok":false}`)
	gock.New(apiBase).
		Get("/bot3:C/getMe").
		Reply(200).
		BodyString(`{"ok":true,"result":{"id":3,"is_bot":true,"first_name":"Third","username":"ThirdBot"}}`)

	results, err := newTestClient().FetchAll(context.Background(), []string{"1:A", "2:B", "3:C"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.Equal(t, "First", results[0].Bot.FirstName)
	assert.False(t, results[1].OK)
	assert.True(t, results[2].OK)
	assert.Equal(t, "Third", results[2].Bot.FirstName)
}

func TestFetchAllAbortsOnFailure(t *testing.T) {
	defer gock.Off()

	gock.New(apiBase).
		Get("/bot1:A/getMe").
		Reply(200).
		BodyString(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"First","username":"FirstBot"}}`)
	gock.New(apiBase).
		Get("/bot2:B/getMe").
		Reply(200).
		BodyString(`garbage`)

	results, err := newTestClient().FetchAll(context.Background(), []string{"1:A", "2:B"})
	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Nil(t, results, "a failed batch must not surface partial results")
}

func TestFetchAllEmpty(t *testing.T) {
	results, err := newTestClient().FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
