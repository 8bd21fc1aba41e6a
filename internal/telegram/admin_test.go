package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"metro_report_bot/internal/broadcast"
	"metro_report_bot/internal/domain"
	"metro_report_bot/internal/store"
)

type fakeDirectory struct {
	byID    map[int64]domain.User
	ids     []int64
	recent  []domain.User
	idsErr  error
	recErr  error
	lookups []string
}

func (f *fakeDirectory) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	user, ok := f.byID[userID]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeDirectory) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	f.lookups = append(f.lookups, username)
	for _, user := range f.byID {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (f *fakeDirectory) ListIDs(ctx context.Context) ([]int64, error) {
	return f.ids, f.idsErr
}

func (f *fakeDirectory) Recent(ctx context.Context, limit int64) ([]domain.User, error) {
	return f.recent, f.recErr
}

type fakeBanRegistry struct {
	banned  map[int64]string
	cleared []int64
}

func (f *fakeBanRegistry) Set(ctx context.Context, userID int64, reason string) error {
	f.banned[userID] = reason
	return nil
}

func (f *fakeBanRegistry) Clear(ctx context.Context, userID int64) (bool, error) {
	_, ok := f.banned[userID]
	delete(f.banned, userID)
	f.cleared = append(f.cleared, userID)
	return ok, nil
}

func (f *fakeBanRegistry) IsBanned(ctx context.Context, userID int64) (bool, error) {
	_, ok := f.banned[userID]
	return ok, nil
}

func (f *fakeBanRegistry) List(ctx context.Context) ([]domain.BanRecord, error) {
	records := make([]domain.BanRecord, 0, len(f.banned))
	for userID, reason := range f.banned {
		records = append(records, domain.BanRecord{UserID: userID, Reason: reason})
	}
	return records, nil
}

type fakeCatalog struct {
	vehicles []string
	replaced [][]string
}

func (f *fakeCatalog) List(ctx context.Context) ([]string, error) { return f.vehicles, nil }

func (f *fakeCatalog) Replace(ctx context.Context, names []string) error {
	f.replaced = append(f.replaced, names)
	f.vehicles = names
	return nil
}

type fakeModeStore struct {
	steps map[int64]domain.Step
}

func newFakeModeStore() *fakeModeStore {
	return &fakeModeStore{steps: map[int64]domain.Step{}}
}

func (f *fakeModeStore) Step(ctx context.Context, userID int64) (domain.Step, error) {
	step, ok := f.steps[userID]
	if !ok {
		return domain.StepIdle, nil
	}
	return step, nil
}

func (f *fakeModeStore) SetStep(ctx context.Context, userID int64, step domain.Step) error {
	f.steps[userID] = step
	return nil
}

func (f *fakeModeStore) Clear(ctx context.Context, userID int64) error {
	delete(f.steps, userID)
	return nil
}

type fakeStats struct{ users, bans, vehicles int64 }

func (f *fakeStats) CountUsers(ctx context.Context) (int64, error)    { return f.users, nil }
func (f *fakeStats) CountBans(ctx context.Context) (int64, error)     { return f.bans, nil }
func (f *fakeStats) CountVehicles(ctx context.Context) (int64, error) { return f.vehicles, nil }

type adminSent struct {
	chatID int64
	text   string
	markup models.ReplyMarkup
}

type fakeAdminMessenger struct {
	sent   []adminSent
	edited []string
}

func (f *fakeAdminMessenger) Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	f.sent = append(f.sent, adminSent{chatID: chatID, text: text, markup: markup})
	return len(f.sent), nil
}

func (f *fakeAdminMessenger) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	f.edited = append(f.edited, text)
	return nil
}

func (f *fakeAdminMessenger) last(t *testing.T) adminSent {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

type adminFixture struct {
	admin *Admin
	dir   *fakeDirectory
	bans  *fakeBanRegistry
	cat   *fakeCatalog
	modes *fakeModeStore
	out   *fakeAdminMessenger
	pend  *broadcast.PendingStore
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	dir := &fakeDirectory{
		byID: map[int64]domain.User{
			10: {UserID: 10, Username: "rider", FirstName: "Иван"},
			11: {UserID: 11, FirstName: "Анна"},
		},
		ids: []int64{10, 11},
	}
	bans := &fakeBanRegistry{banned: map[int64]string{}}
	cat := &fakeCatalog{vehicles: []string{"ЭКА", "Ретросостав"}}
	modes := newFakeModeStore()
	out := &fakeAdminMessenger{}
	pend := broadcast.NewPendingStore(time.Minute)

	dispatcher, err := broadcast.NewDispatcher(senderFunc(func(ctx context.Context, userID int64, text string) error {
		return nil
	}), 25, time.Second, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	admin, err := NewAdmin(dir, bans, cat, &fakeStats{users: 2, bans: 1, vehicles: 2}, modes, out, dispatcher, pend, 4000, nil)
	if err != nil {
		t.Fatalf("NewAdmin: %v", err)
	}

	return &adminFixture{admin: admin, dir: dir, bans: bans, cat: cat, modes: modes, out: out, pend: pend}
}

type senderFunc func(ctx context.Context, userID int64, text string) error

func (f senderFunc) SendTo(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

const adminChat = int64(99)

func TestHandleBanByID(t *testing.T) {
	f := newAdminFixture(t)

	if err := f.admin.HandleBan(context.Background(), adminChat, 1, "10 спам в предложке"); err != nil {
		t.Fatalf("HandleBan: %v", err)
	}

	if f.bans.banned[10] != "спам в предложке" {
		t.Fatalf("expected ban with reason, got %q", f.bans.banned[10])
	}
	if !strings.Contains(f.out.last(t).text, "забанен") {
		t.Fatalf("expected confirmation, got %q", f.out.last(t).text)
	}
}

func TestHandleBanByUsernameDefaultsReason(t *testing.T) {
	f := newAdminFixture(t)

	if err := f.admin.HandleBan(context.Background(), adminChat, 1, "@rider"); err != nil {
		t.Fatalf("HandleBan: %v", err)
	}

	if f.bans.banned[10] != domain.DefaultBanReason {
		t.Fatalf("expected default reason, got %q", f.bans.banned[10])
	}
	if !strings.Contains(f.out.last(t).text, "@rider") {
		t.Fatalf("expected username in confirmation, got %q", f.out.last(t).text)
	}
}

func TestHandleBanRejectsUnknownUsernameAndBadFormat(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if err := f.admin.HandleBan(ctx, adminChat, 1, "@ghost"); err != nil {
		t.Fatalf("HandleBan: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "не найден") {
		t.Fatalf("expected not-found reply, got %q", f.out.last(t).text)
	}

	if err := f.admin.HandleBan(ctx, adminChat, 1, "abc"); err != nil {
		t.Fatalf("HandleBan: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "Неверный формат") {
		t.Fatalf("expected format reply, got %q", f.out.last(t).text)
	}

	if err := f.admin.HandleBan(ctx, adminChat, 1, ""); err != nil {
		t.Fatalf("HandleBan: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "Использование") {
		t.Fatalf("expected usage reply, got %q", f.out.last(t).text)
	}
	if len(f.bans.banned) != 0 {
		t.Fatalf("expected no bans recorded, got %v", f.bans.banned)
	}
}

func TestHandleBanRejectsNeverSeenID(t *testing.T) {
	f := newAdminFixture(t)

	if err := f.admin.HandleBan(context.Background(), adminChat, 1, "424242 спам"); err != nil {
		t.Fatalf("HandleBan: %v", err)
	}

	if len(f.bans.banned) != 0 {
		t.Fatalf("expected no ban for a user the bot never saw, got %v", f.bans.banned)
	}
	if !strings.Contains(f.out.last(t).text, "424242 не найден") {
		t.Fatalf("expected not-found reply, got %q", f.out.last(t).text)
	}
}

func TestHandleUnban(t *testing.T) {
	f := newAdminFixture(t)
	f.bans.banned[10] = "-"

	if err := f.admin.HandleUnban(context.Background(), adminChat, 1, "@rider"); err != nil {
		t.Fatalf("HandleUnban: %v", err)
	}

	if len(f.bans.banned) != 0 {
		t.Fatalf("expected ban lifted")
	}
	if !strings.Contains(f.out.last(t).text, "разбанен") {
		t.Fatalf("expected confirmation, got %q", f.out.last(t).text)
	}
}

func TestHandleBanlistJoinsUserDetails(t *testing.T) {
	f := newAdminFixture(t)
	f.bans.banned[10] = "спам"

	if err := f.admin.HandleBanlist(context.Background(), adminChat, 1); err != nil {
		t.Fatalf("HandleBanlist: %v", err)
	}

	text := f.out.last(t).text
	for _, want := range []string{"Забаненные пользователи (1)", "ID: 10", "@rider", "Иван", "спам"} {
		if !strings.Contains(text, want) {
			t.Fatalf("banlist missing %q:\n%s", want, text)
		}
	}
}

func TestHandleBanlistEmpty(t *testing.T) {
	f := newAdminFixture(t)

	if err := f.admin.HandleBanlist(context.Background(), adminChat, 1); err != nil {
		t.Fatalf("HandleBanlist: %v", err)
	}
	if f.out.last(t).text != "📋 Список банов пуст" {
		t.Fatalf("expected empty notice, got %q", f.out.last(t).text)
	}
}

func TestHandleRecentShowsBanButtons(t *testing.T) {
	f := newAdminFixture(t)
	f.dir.recent = []domain.User{
		{UserID: 11, FirstName: "Анна"},
		{UserID: 10, Username: "rider", FirstName: "Иван"},
	}
	f.bans.banned[10] = "-"

	if err := f.admin.HandleRecent(context.Background(), adminChat, 1); err != nil {
		t.Fatalf("HandleRecent: %v", err)
	}

	msg := f.out.last(t)
	if !strings.Contains(msg.text, "🚫 ЗАБАНЕН Иван") {
		t.Fatalf("expected banned marker, got:\n%s", msg.text)
	}

	markup, ok := msg.markup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", msg.markup)
	}
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("expected a button per user, got %d rows", len(markup.InlineKeyboard))
	}
	if markup.InlineKeyboard[0][0].CallbackData != "ban:11" {
		t.Fatalf("expected ban button for Анна, got %q", markup.InlineKeyboard[0][0].CallbackData)
	}
	if markup.InlineKeyboard[1][0].CallbackData != "unban:10" {
		t.Fatalf("expected unban button for Иван, got %q", markup.InlineKeyboard[1][0].CallbackData)
	}
}

func TestBanButtonEditsListMessage(t *testing.T) {
	f := newAdminFixture(t)

	toast, err := f.admin.HandleBanButton(context.Background(), adminChat, 5, 1, 11)
	if err != nil {
		t.Fatalf("HandleBanButton: %v", err)
	}

	if f.bans.banned[11] != buttonBanReason {
		t.Fatalf("expected button ban reason, got %q", f.bans.banned[11])
	}
	if !strings.Contains(toast, "Анна") {
		t.Fatalf("expected name in toast, got %q", toast)
	}
	if len(f.out.edited) != 1 || !strings.Contains(f.out.edited[0], "/recent") {
		t.Fatalf("expected list message rewritten, got %v", f.out.edited)
	}
}

func TestBroadcastFlow(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if err := f.admin.HandleGong(ctx, adminChat, 1); err != nil {
		t.Fatalf("HandleGong: %v", err)
	}
	if f.modes.steps[1] != domain.StepAdminBroadcast {
		t.Fatalf("expected broadcast mode persisted, got %v", f.modes.steps[1])
	}

	if err := f.admin.HandleBroadcastText(ctx, adminChat, 1, "Важное объявление"); err != nil {
		t.Fatalf("HandleBroadcastText: %v", err)
	}
	if _, ok := f.modes.steps[1]; ok {
		t.Fatalf("expected broadcast mode consumed, got %v", f.modes.steps[1])
	}

	confirm := f.out.last(t)
	if !strings.Contains(confirm.text, "Рассылка для 2 пользователей") {
		t.Fatalf("expected recipient count, got %q", confirm.text)
	}
	markup, ok := confirm.markup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected confirm keyboard")
	}
	data := markup.InlineKeyboard[0][0].CallbackData
	if !strings.HasPrefix(data, "gong_yes:") {
		t.Fatalf("expected confirm intent, got %q", data)
	}

	token := strings.TrimPrefix(data, "gong_yes:")
	if _, ok := f.pend.Take(token); !ok {
		t.Fatalf("expected payload stored under token")
	}
}

func TestBroadcastTextValidation(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if err := f.admin.HandleBroadcastText(ctx, adminChat, 1, "   "); err != nil {
		t.Fatalf("HandleBroadcastText: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "не может быть пустым") {
		t.Fatalf("expected validation reply, got %q", f.out.last(t).text)
	}

	f.dir.ids = nil
	if err := f.admin.HandleBroadcastText(ctx, adminChat, 1, "текст"); err != nil {
		t.Fatalf("HandleBroadcastText: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "Нет пользователей") {
		t.Fatalf("expected empty-audience reply, got %q", f.out.last(t).text)
	}
}

func TestBroadcastConfirmRejectsUnknownToken(t *testing.T) {
	f := newAdminFixture(t)

	toast, err := f.admin.HandleBroadcastConfirm(context.Background(), adminChat, 5, 1, "missing")
	if err != nil {
		t.Fatalf("HandleBroadcastConfirm: %v", err)
	}
	if toast != "❌ Текст не найден" {
		t.Fatalf("expected missing-token toast, got %q", toast)
	}
}

func TestBroadcastCancelDiscardsPayload(t *testing.T) {
	f := newAdminFixture(t)

	token := f.pend.Put(1, "текст")
	toast, err := f.admin.HandleBroadcastCancel(context.Background(), adminChat, 5, 1, token)
	if err != nil {
		t.Fatalf("HandleBroadcastCancel: %v", err)
	}
	if toast != "Отменено" {
		t.Fatalf("unexpected toast %q", toast)
	}
	if _, ok := f.pend.Take(token); ok {
		t.Fatalf("expected payload discarded")
	}
	if len(f.out.edited) != 1 || f.out.edited[0] != "❌ Рассылка отменена" {
		t.Fatalf("expected cancel edit, got %v", f.out.edited)
	}
}

func TestRunBroadcastEditsSummary(t *testing.T) {
	f := newAdminFixture(t)

	f.admin.runBroadcast(context.Background(), adminChat, 5, []int64{10, 11}, "текст")

	if len(f.out.edited) == 0 {
		t.Fatalf("expected summary edit")
	}
	summary := f.out.edited[len(f.out.edited)-1]
	for _, want := range []string{"Рассылка завершена", "Всего пользователей: 2", "Успешно: 2", "Ошибок: 0"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestVehicleEditReplacesListAndReportsDuplicates(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if err := f.admin.HandleEditTrains(ctx, adminChat, 1); err != nil {
		t.Fatalf("HandleEditTrains: %v", err)
	}
	if f.modes.steps[1] != domain.StepAdminVehicles {
		t.Fatalf("expected editing mode persisted, got %v", f.modes.steps[1])
	}
	if !strings.Contains(f.out.last(t).text, "ЭКА") {
		t.Fatalf("expected current list shown, got %q", f.out.last(t).text)
	}

	input := "Балтиец\n\nЭКА\nБалтиец\n/stats\nРетросостав"
	if err := f.admin.HandleVehicleEdit(ctx, adminChat, 1, input); err != nil {
		t.Fatalf("HandleVehicleEdit: %v", err)
	}
	if _, ok := f.modes.steps[1]; ok {
		t.Fatalf("expected editing mode consumed, got %v", f.modes.steps[1])
	}

	if len(f.cat.replaced) != 1 {
		t.Fatalf("expected one replace call")
	}
	want := []string{"Балтиец", "ЭКА", "Ретросостав"}
	got := f.cat.replaced[0]
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	result := f.out.last(t).text
	if !strings.Contains(result, "Добавлено: 3") || !strings.Contains(result, "дубликатов: 1") {
		t.Fatalf("unexpected result message %q", result)
	}
}

func TestVehicleEditCancelAndEmpty(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if err := f.admin.HandleEditTrains(ctx, adminChat, 1); err != nil {
		t.Fatalf("HandleEditTrains: %v", err)
	}
	if err := f.admin.HandleVehicleEdit(ctx, adminChat, 1, buttonCancelEdit); err != nil {
		t.Fatalf("HandleVehicleEdit: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "отменено") {
		t.Fatalf("expected cancel notice, got %q", f.out.last(t).text)
	}
	if len(f.cat.replaced) != 0 {
		t.Fatalf("expected no replace on cancel")
	}

	if err := f.admin.HandleEditTrains(ctx, adminChat, 1); err != nil {
		t.Fatalf("HandleEditTrains: %v", err)
	}
	if err := f.admin.HandleVehicleEdit(ctx, adminChat, 1, "\n/start\n"); err != nil {
		t.Fatalf("HandleVehicleEdit: %v", err)
	}
	if !strings.Contains(f.out.last(t).text, "не может быть пустым") {
		t.Fatalf("expected empty-list notice, got %q", f.out.last(t).text)
	}
}

func TestHandleStats(t *testing.T) {
	f := newAdminFixture(t)

	if err := f.admin.HandleStats(context.Background(), adminChat, 1); err != nil {
		t.Fatalf("HandleStats: %v", err)
	}

	text := f.out.last(t).text
	for _, want := range []string{"Пользователей: 2", "Банов: 1", "Составов: 2"} {
		if !strings.Contains(text, want) {
			t.Fatalf("stats missing %q: %q", want, text)
		}
	}
}

func TestSplitTextChunksLongReplies(t *testing.T) {
	long := strings.Repeat("ж", 9500)

	parts := splitText(long, replyLimit)
	if len(parts) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(parts))
	}
	if len([]rune(parts[0])) != replyLimit || len([]rune(parts[2])) != 1500 {
		t.Fatalf("unexpected chunk sizes %d/%d/%d",
			len([]rune(parts[0])), len([]rune(parts[1])), len([]rune(parts[2])))
	}

	if got := splitText("короткий", replyLimit); len(got) != 1 {
		t.Fatalf("expected single chunk, got %d", len(got))
	}
}
