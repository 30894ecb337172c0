package sink

import (
	"context"

	"github.com/gomodule/redigo/redis"
	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"
)

const (
	redisURLConfKey = "redis.url"
	redisKeyConfKey = "redis.key"
)

// 結果をRedisのリストに追加する。要素はURLとテキストからなるJSON配列
type redisSink struct {
	conn redis.Conn
	key  *string // nilなら実行日時からキーを決める
}

func RedisSinkProvider(_ context.Context, conf *linkget.Configuration) (linkget.Sink, error) {
	redisURL, err := conf.RequiredOptionAsString(redisURLConfKey)
	if err != nil {
		return nil, err
	}

	conn, err := redis.DialURL(redisURL)
	if err != nil {
		return nil, xerrors.Errorf("failed to connect redis: %w", err)
	}

	return &redisSink{conn: conn, key: conf.OptionAsString(redisKeyConfKey)}, nil
}

func (s *redisSink) Render(ctx context.Context, result *linkget.Result) error {
	if len(result.Links) == 0 {
		return nil
	}

	key := "linkget:" + result.Stamp()
	if s.key != nil {
		key = *s.key
	}

	if _, err := s.conn.Do("MULTI"); err != nil {
		return xerrors.Errorf("failed to start transaction: %w", err)
	}

	for _, link := range result.Links {
		pair, err := marshalPair(link)
		if err != nil {
			_, _ = s.conn.Do("DISCARD")
			return xerrors.Errorf("failed to marshal link: %w", err)
		}

		if err = s.conn.Send("RPUSH", key, pair); err != nil {
			_, _ = s.conn.Do("DISCARD")
			return xerrors.Errorf("failed to push link: %w", err)
		}
	}

	if _, err := s.conn.Do("EXEC"); err != nil {
		return xerrors.Errorf("failed to exec transaction: %w", err)
	}

	linkget.LoggerFromContext(ctx).Infof("pushed %d links to %s", len(result.Links), key)
	return nil
}

func (s *redisSink) Finish() error {
	return s.conn.Close()
}
