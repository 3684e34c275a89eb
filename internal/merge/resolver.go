package merge

import (
	"reflect"
	"sort"
	"time"

	"github.com/iudanet/statesync/internal/models"
)

// Result содержит итог слияния двух снапшотов.
type Result struct {
	Merged    *models.Snapshot
	Conflicts []models.ConflictRecord
}

// Resolver сливает локальный и удалённый снапшоты по правилу Last-Write-Wins.
// Resolver не хранит состояния между вызовами; часы нужны только для ResolvedAt.
type Resolver struct {
	now func() time.Time
}

// Option настраивает Resolver.
type Option func(*Resolver)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver создает новый Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewResolver()

// Merge сливает local и remote без общего предка.
func Merge(local, remote *models.Snapshot) Result {
	return defaultResolver.Merge(local, remote)
}

// Merge сливает local и remote без общего предка: любое расхождение
// считается изменением с обеих сторон.
func (r *Resolver) Merge(local, remote *models.Snapshot) Result {
	return r.MergeWithBase(nil, local, remote)
}

// MergeWithBase сливает local и remote относительно общего предка base.
//
// Правила:
//  1. Фрагмент (или сущность коллекции), присутствующий только с одной стороны, сохраняется.
//  2. Коллекции записей с id сливаются по сущностям, а записи по полям верхнего уровня,
//     остальные значения сравниваются целиком.
//  3. Если поле изменила только одна сторона (относительно base), берется её значение, без конфликта.
//  4. Если изменили обе стороны, побеждает больший lastModified; при равенстве побеждает
//     удалённая сторона. В обоих случаях добавляется ConflictRecord.
//
// Слияние всегда завершается: конфликты журналируются, но не блокируют результат.
func (r *Resolver) MergeWithBase(base, local, remote *models.Snapshot) Result {
	switch {
	case local == nil && remote == nil:
		return Result{Merged: models.NewSnapshot("")}
	case local == nil:
		return Result{Merged: remote.Clone()}
	case remote == nil:
		return Result{Merged: local.Clone()}
	}

	m := &merger{
		baseKnown: base != nil,
		now:       r.now().UTC(),
	}

	payload := make(map[string]any, len(local.Payload)+len(remote.Payload))
	for _, key := range unionKeys(local.Payload, remote.Payload) {
		lv, lok := local.Payload[key]
		rv, rok := remote.Payload[key]

		switch {
		case !lok:
			payload[key] = models.CloneValue(rv)
		case !rok:
			payload[key] = models.CloneValue(lv)
		default:
			bv, bok := base.Fragment(key)
			payload[key] = m.mergeFragment(key, bv, bok, lv, rv, local.LastModified, remote.LastModified)
		}
	}

	lastModified := remote.LastModified
	if local.LastModified.After(lastModified) {
		lastModified = local.LastModified
	}

	merged := &models.Snapshot{
		LastModified: lastModified,
		Payload:      payload,
		DeviceID:     local.DeviceID,
		ConflictLog:  mergeLogs(remote.ConflictLog, local.ConflictLog, m.conflicts),
		Version:      remote.Version,
	}

	return Result{Merged: merged, Conflicts: m.conflicts}
}

type merger struct {
	now       time.Time
	conflicts []models.ConflictRecord
	baseKnown bool
}

func (m *merger) mergeFragment(key string, bv any, bok bool, lv, rv any, lts, rts time.Time) any {
	if reflect.DeepEqual(lv, rv) {
		return models.CloneValue(lv)
	}

	if models.IsCollection(lv) && models.IsCollection(rv) {
		var baseList []any
		if bok && models.IsCollection(bv) {
			baseList = bv.([]any)
		}
		return m.mergeCollection(key, baseList, lv.([]any), rv.([]any), lts, rts)
	}

	lrec, lIsRecord := lv.(map[string]any)
	rrec, rIsRecord := rv.(map[string]any)
	if lIsRecord && rIsRecord {
		brec, _ := bv.(map[string]any)
		return m.mergeRecord(key, "", brec, lrec, rrec, lts, rts)
	}

	return m.resolve(key, "", "", bv, bok, lv, rv, lts, rts)
}

// mergeCollection сливает коллекции по сущностям.
// Порядок результата: сущности в порядке remote, затем локальные сущности, которых нет в remote.
func (m *merger) mergeCollection(key string, base, local, remote []any, lts, rts time.Time) []any {
	baseByID := indexByID(base)
	localByID := indexByID(local)
	remoteByID := indexByID(remote)

	out := make([]any, 0, len(remote)+len(local))

	for _, item := range remote {
		rrec := item.(map[string]any)
		id, _ := models.EntityKey(rrec)

		lrec, ok := localByID[id]
		if !ok {
			out = append(out, models.CloneValue(rrec))
			continue
		}

		if reflect.DeepEqual(lrec, rrec) {
			out = append(out, models.CloneValue(rrec))
			continue
		}

		out = append(out, m.mergeRecord(key, id, baseByID[id], lrec, rrec, lts, rts))
	}

	for _, item := range local {
		lrec := item.(map[string]any)
		id, _ := models.EntityKey(lrec)
		if _, ok := remoteByID[id]; !ok {
			out = append(out, models.CloneValue(lrec))
		}
	}

	return out
}

// mergeRecord сливает две записи по полям верхнего уровня.
// Собственные lastModified записей сравниваются, только если они есть у обеих сторон;
// иначе обе стороны сравниваются по времени снапшотов.
func (m *merger) mergeRecord(key, entityID string, base, local, remote map[string]any, lts, rts time.Time) map[string]any {
	lrts, lok := models.RecordTimestamp(local)
	rrts, rok := models.RecordTimestamp(remote)
	if lok && rok {
		lts, rts = lrts, rrts
	}

	out := make(map[string]any, len(local)+len(remote))
	for _, field := range unionKeys(local, remote) {
		if field == models.FieldLastModified {
			continue
		}

		lv, lok := local[field]
		rv, rok := remote[field]

		switch {
		case !lok:
			out[field] = models.CloneValue(rv)
		case !rok:
			out[field] = models.CloneValue(lv)
		default:
			bv, bok := base[field]
			out[field] = m.resolve(key, entityID, field, bv, bok, lv, rv, lts, rts)
		}
	}

	// lastModified результата: более поздний из двух
	lraw, lok := local[models.FieldLastModified]
	rraw, rok := remote[models.FieldLastModified]
	switch {
	case lok && rok:
		if lrts.After(rrts) {
			out[models.FieldLastModified] = lraw
		} else {
			out[models.FieldLastModified] = rraw
		}
	case lok:
		out[models.FieldLastModified] = lraw
	case rok:
		out[models.FieldLastModified] = rraw
	}

	return out
}

// resolve выбирает значение одного поля (или целого скалярного фрагмента).
func (m *merger) resolve(key, entityID, field string, bv any, bok bool, lv, rv any, lts, rts time.Time) any {
	if reflect.DeepEqual(lv, rv) {
		return models.CloneValue(lv)
	}

	localChanged := !m.baseKnown || !bok || !reflect.DeepEqual(bv, lv)
	remoteChanged := !m.baseKnown || !bok || !reflect.DeepEqual(bv, rv)

	switch {
	case localChanged && !remoteChanged:
		return models.CloneValue(lv)
	case remoteChanged && !localChanged:
		return models.CloneValue(rv)
	}

	// Обе стороны изменили одно и то же поле: Last-Write-Wins
	var resolution models.Resolution
	var winner any
	switch {
	case lts.After(rts):
		resolution = models.ResolutionLocalWins
		winner = lv
	case rts.After(lts):
		resolution = models.ResolutionRemoteWins
		winner = rv
	default:
		// Timestamps равны: удалённая сторона авторитетна
		resolution = models.ResolutionRemotePreferred
		winner = rv
	}

	m.conflicts = append(m.conflicts, models.ConflictRecord{
		ResolvedAt:  m.now,
		LocalValue:  models.CloneValue(lv),
		RemoteValue: models.CloneValue(rv),
		FragmentKey: key,
		EntityID:    entityID,
		Field:       field,
		Resolution:  resolution,
	})

	return models.CloneValue(winner)
}

// mergeLogs объединяет журналы конфликтов без дубликатов, сохраняя порядок добавления.
func mergeLogs(remote, local, fresh []models.ConflictRecord) []models.ConflictRecord {
	out := make([]models.ConflictRecord, 0, len(remote)+len(local)+len(fresh))
	seen := make(map[string]struct{}, cap(out))

	for _, logs := range [][]models.ConflictRecord{remote, local, fresh} {
		for _, rec := range logs {
			k := rec.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, rec.Clone())
		}
	}

	return out
}

func indexByID(list []any) map[string]map[string]any {
	index := make(map[string]map[string]any, len(list))
	for _, item := range list {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := models.EntityKey(record); ok {
			index[id] = record
		}
	}
	return index
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
