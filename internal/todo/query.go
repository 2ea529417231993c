package todo

import (
	"net/url"
	"strconv"

	"github.com/hitoshi/todoman/internal/model"
)

// ListQuery はTODO一覧の取得条件。
type ListQuery struct {
	Take          int
	Skip          int
	PublishedOnly bool
}

// ParseListQuery はクエリパラメータ take, skip, isPublish を解析する。
// takeは未指定時DefaultTake、上限MaxTake。負数や数値以外はINVALID_PAGINATIONを返す。
// isPublishはtrueとして解釈できる値の場合のみ公開済みTODOの検索になる。
func ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Take: DefaultTake}

	if raw := values.Get("take"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListQuery{}, model.NewInvalidPaginationError("take")
		}
		if n == 0 {
			n = DefaultTake
		}
		if n > MaxTake {
			n = MaxTake
		}
		q.Take = n
	}

	if raw := values.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListQuery{}, model.NewInvalidPaginationError("skip")
		}
		q.Skip = n
	}

	if raw := values.Get("isPublish"); raw != "" {
		publish, err := strconv.ParseBool(raw)
		if err != nil {
			return ListQuery{}, model.NewValidationError("isPublishにはtrueまたはfalseを指定してください。")
		}
		q.PublishedOnly = publish
	}

	return q, nil
}
