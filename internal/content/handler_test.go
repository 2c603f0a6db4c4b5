package content

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamlink/dreamlinkd/internal/config"
	"github.com/dreamlink/dreamlinkd/internal/dlc"
	"github.com/dreamlink/dreamlinkd/internal/dream"
	"github.com/dreamlink/dreamlinkd/internal/gsid"
	"github.com/dreamlink/dreamlinkd/internal/model"
	"github.com/dreamlink/dreamlinkd/internal/session"
	"github.com/dreamlink/dreamlinkd/internal/store/memory"
)

const testPID = 45991782

func writeContent(t *testing.T, root, serial, typ, name string) {
	t.Helper()
	dir := filepath.Join(root, serial, typ)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{1, 2, 3, 4}, 0o644))
}

type fixture struct {
	router  *mux.Router
	players *memory.Store
	token   string
	id      string
}

func newFixture(t *testing.T, mutate func(*config.Config), content *dlc.List) *fixture {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	if content == nil {
		var err error
		content, err = dlc.Load(t.TempDir())
		require.NoError(t, err)
	}

	players := memory.New()
	sessions := session.NewMemory()
	creds, err := sessions.Issue(context.Background(), "1234567890123", session.ServiceContent, "")
	require.NoError(t, err)

	router := mux.NewRouter()
	NewHandler(cfg, players, sessions, content).Register(router)
	return &fixture{
		router:  router,
		players: players,
		token:   creds.Token,
		id:      gsid.Stringify(testPID),
	}
}

func (f *fixture) do(t *testing.T, method, operation string, extra url.Values, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	query := url.Values{}
	query.Set("p", operation)
	query.Set("tok", f.token)
	query.Set("gsid", strconv.Itoa(testPID))
	for name, values := range extra {
		query.Set(name, values[0])
	}

	req := httptest.NewRequest(method, "/dsio/gw?"+query.Encode(), bytes.NewReader(body))
	req.SetBasicAuth(authUsername, authPassword)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func romQuery(v model.GameVersion) url.Values {
	return url.Values{
		"rom":      []string{strconv.Itoa(v.RomCode)},
		"langcode": []string{strconv.Itoa(v.LanguageCode)},
	}
}

// statusCode extracts the little-endian code from the 128-byte header.
func statusCode(t *testing.T, rec *httptest.ResponseRecorder) uint32 {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	require.GreaterOrEqual(t, len(body), 128)
	return binary.LittleEndian.Uint32(body)
}

func version(t *testing.T, serial string) model.GameVersion {
	t.Helper()
	v, ok := model.LookupSerial(serial)
	require.True(t, ok)
	return v
}

func testRecord() *model.PkmnRecord {
	return &model.PkmnRecord{
		Species:     25,
		Nickname:    "PIKACHU",
		TrainerName: "ASH",
		Level:       50,
		Nature:      10,
		Gender:      model.GenderFemale,
		Ability:     9,
		Personality: 0xDEADBEEF,
		TrainerID:   0x1234,
	}
}

func TestRejectsBadCredentials(t *testing.T) {
	f := newFixture(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/dsio/gw?p=account.playstatus&tok="+f.token, nil)
	req.SetBasicAuth(authUsername, "wrong")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRejectsUnknownToken(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.token = "NDSbogus"

	rec := f.do(t, http.MethodGet, "account.playstatus", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlayStatus(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "account.playstatus", nil, nil)
	assert.Equal(t, uint32(StatusInvalidGameSyncID), statusCode(t, rec))

	player := model.NewPlayer(f.id, version(t, "IRBO"))
	player.Status = model.StatusSleeping
	require.NoError(t, f.players.PutPlayer(context.Background(), player))

	rec = f.do(t, http.MethodGet, "account.playstatus", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))
	body := rec.Body.Bytes()
	require.Len(t, body, 130)
	assert.Equal(t, uint16(model.StatusSleeping), binary.LittleEndian.Uint16(body[128:]))
}

func TestSleepyList(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "sleepily.bitlist", nil, nil)
	assert.Equal(t, uint32(StatusUnauthorized), statusCode(t, rec))

	require.NoError(t, f.players.PutPlayer(context.Background(), model.NewPlayer(f.id, version(t, "IRBO"))))
	rec = f.do(t, http.MethodGet, "sleepily.bitlist", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	bitmap := rec.Body.Bytes()[128:]
	require.Len(t, bitmap, 128)
	assert.NotZero(t, bitmap[1/8]&(1<<(1%8)), "species 1 missing")
	assert.NotZero(t, bitmap[649/8]&(1<<(649%8)), "species 649 missing")
	assert.Zero(t, bitmap[0]&1, "species 0 set")
	assert.Zero(t, bitmap[650/8]&(1<<(650%8)), "species 650 set")
}

func TestDownload(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "savedata.download", nil, nil)
	assert.Equal(t, uint32(StatusUnauthorized), statusCode(t, rec))

	// An awake player gets the header and nothing else.
	player := model.NewPlayer(f.id, version(t, "IRBO"))
	require.NoError(t, f.players.PutPlayer(context.Background(), player))
	rec = f.do(t, http.MethodGet, "savedata.download", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))
	assert.Len(t, rec.Body.Bytes(), 128)

	player.Status = model.StatusSleeping
	player.Dreamer = testRecord()
	require.NoError(t, f.players.PutPlayer(context.Background(), player))
	rec = f.do(t, http.MethodGet, "savedata.download", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))
	assert.Len(t, rec.Body.Bytes(), 128+dream.PayloadSize)
}

func TestDownloadContentIndexes(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, "IRAO", "MUSICAL", "show.bin")
	writeContent(t, root, "IRAO", "CGEAR", "skin-a.bin")
	writeContent(t, root, "IRAO", "CGEAR", "skin-b.bin")
	writeContent(t, root, "IRAO", "ZUKAN", "dex.bin")
	content, err := dlc.Load(root)
	require.NoError(t, err)

	f := newFixture(t, nil, content)
	player := model.NewPlayer(f.id, version(t, "IRBO"))
	player.Status = model.StatusSleeping
	player.Dreamer = testRecord()
	player.Musical = "show.bin"
	player.CGearSkin = "skin-b.bin"
	player.DexSkin = "dex.bin"
	require.NoError(t, f.players.PutPlayer(context.Background(), player))

	rec := f.do(t, http.MethodGet, "savedata.download", nil, nil)
	payload := rec.Body.Bytes()[128:]
	require.Len(t, payload, dream.PayloadSize)
	assert.Equal(t, byte(1), payload[87], "musical index")
	assert.Equal(t, byte(2), payload[88], "cgear index")
	assert.Equal(t, byte(1), payload[89], "dex index")
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	v := version(t, "IRBO")
	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, v)))

	body := dream.WriteRecord(testRecord())
	rec := f.do(t, http.MethodPost, "savedata.upload", romQuery(v), body)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	player, err := f.players.GetPlayer(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSleeping, player.Status)
	require.NotNil(t, player.Dreamer)
	assert.Equal(t, 25, player.Dreamer.Species)
	assert.Equal(t, "PIKACHU", player.Dreamer.Nickname)

	save, err := f.players.GetSaveData(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, body, save)
}

func TestUploadFullSaveFile(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	v := version(t, "IRBO")
	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, v)))

	body := make([]byte, dream.SaveRecordOffset+dream.RecordSize)
	copy(body[dream.SaveRecordOffset:], dream.WriteRecord(testRecord()))
	rec := f.do(t, http.MethodPost, "savedata.upload", romQuery(v), body)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	player, err := f.players.GetPlayer(ctx, f.id)
	require.NoError(t, err)
	require.NotNil(t, player.Dreamer)
	assert.Equal(t, 25, player.Dreamer.Species)
}

func TestUploadRejectsSleepingPlayer(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	v := version(t, "IRBO")
	player := model.NewPlayer(f.id, v)
	player.Status = model.StatusSleeping
	require.NoError(t, f.players.PutPlayer(ctx, player))

	rec := f.do(t, http.MethodPost, "savedata.upload", romQuery(v), dream.WriteRecord(testRecord()))
	assert.Equal(t, uint32(StatusUnauthorized), statusCode(t, rec))
}

func TestUploadOverwriteAllowed(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.AllowDreamOverwrite = true }, nil)
	ctx := context.Background()
	v := version(t, "IRBO")
	player := model.NewPlayer(f.id, v)
	player.Status = model.StatusSleeping
	require.NoError(t, f.players.PutPlayer(ctx, player))

	rec := f.do(t, http.MethodPost, "savedata.upload", romQuery(v), dream.WriteRecord(testRecord()))
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))
}

func TestUploadRejectsVersionMismatch(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, version(t, "IRBO"))))

	rec := f.do(t, http.MethodPost, "savedata.upload", romQuery(version(t, "IRDO")), dream.WriteRecord(testRecord()))
	assert.Equal(t, uint32(StatusUnauthorized), statusCode(t, rec))
}

func TestUploadBadRecord(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	v := version(t, "IRBO")
	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, v)))

	rec := f.do(t, http.MethodPost, "savedata.upload", romQuery(v), make([]byte, dream.RecordSize))
	assert.Equal(t, uint32(StatusSaveDataError), statusCode(t, rec))

	// The player record is untouched by a failed upload.
	player, err := f.players.GetPlayer(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwake, player.Status)
	assert.Nil(t, player.Dreamer)
}

func TestDownloadFinish(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	rec := f.do(t, http.MethodPost, "savedata.download.finish", nil, nil)
	assert.Equal(t, uint32(StatusUnauthorized), statusCode(t, rec))

	player := model.NewPlayer(f.id, version(t, "IRBO"))
	player.Status = model.StatusSleeping
	player.Dreamer = testRecord()
	require.NoError(t, f.players.PutPlayer(ctx, player))

	rec = f.do(t, http.MethodPost, "savedata.download.finish", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	player, err := f.players.GetPlayer(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwake, player.Status)
	assert.Nil(t, player.Dreamer)
}

func TestDownloadFinishKeepsContentWhenConfigured(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.WakeResetsDreamContent = false }, nil)
	ctx := context.Background()

	player := model.NewPlayer(f.id, version(t, "IRBO"))
	player.Status = model.StatusSleeping
	require.NoError(t, f.players.PutPlayer(ctx, player))

	rec := f.do(t, http.MethodPost, "savedata.download.finish", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	player, err := f.players.GetPlayer(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSleeping, player.Status)
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	v := version(t, "IRAO")

	save := []byte{1, 2, 3}
	rec := f.do(t, http.MethodPost, "account.create.upload", romQuery(v), save)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	player, err := f.players.GetPlayer(ctx, f.id)
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.Equal(t, v, player.Version)
	assert.Equal(t, model.StatusAwake, player.Status)

	stored, err := f.players.GetSaveData(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, save, stored)

	rec = f.do(t, http.MethodPost, "account.create.upload", romQuery(v), save)
	assert.Equal(t, uint32(StatusDuplicateID), statusCode(t, rec))
}

func TestCreateAccountRejectsBadID(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodPost, "account.create.upload", url.Values{"gsid": []string{"junk"}}, nil)
	assert.Equal(t, uint32(StatusInvalidGameSyncID), statusCode(t, rec))
}

func TestCreateData(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	rec := f.do(t, http.MethodPost, "account.createdata", nil, []byte("424242\x00"))
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))

	player, err := f.players.GetPlayer(ctx, gsid.Stringify(424242))
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.False(t, player.Version.Known())

	rec = f.do(t, http.MethodPost, "account.createdata", nil, []byte("424242"))
	assert.Equal(t, uint32(StatusDuplicateID), statusCode(t, rec))
}

func TestMemoryLink(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "savedata.getbw", nil, nil)
	assert.Equal(t, uint32(StatusInvalidGameSyncID), statusCode(t, rec))

	// A player with no recorded version has nothing to link against.
	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, model.GameVersion{})))
	rec = f.do(t, http.MethodGet, "savedata.getbw", nil, nil)
	assert.Equal(t, uint32(StatusNoSaveData), statusCode(t, rec))

	// Save data from a sequel game cannot be linked.
	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, version(t, "IRDO"))))
	rec = f.do(t, http.MethodGet, "savedata.getbw", nil, nil)
	assert.Equal(t, uint32(StatusWrongGameVersion), statusCode(t, rec))

	require.NoError(t, f.players.PutPlayer(ctx, model.NewPlayer(f.id, version(t, "IRBO"))))
	rec = f.do(t, http.MethodGet, "savedata.getbw", nil, nil)
	assert.Equal(t, uint32(StatusNoSaveData), statusCode(t, rec))

	save := []byte{9, 9, 9, 9}
	require.NoError(t, f.players.PutSaveData(ctx, f.id, save))
	rec = f.do(t, http.MethodGet, "savedata.getbw", nil, nil)
	assert.Equal(t, uint32(StatusOK), statusCode(t, rec))
	assert.Equal(t, save, rec.Body.Bytes()[128:])
}
