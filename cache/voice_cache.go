package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"VoxTA/logger"
	"VoxTA/model"

	"github.com/go-redis/redis/v8"
)

const voiceSampleTTL = 10 * time.Minute

// voiceKey 根据声音ID生成Redis键
func voiceKey(voiceID string) string {
	return fmt.Sprintf("voice:%s", voiceID)
}

// SetVoiceSample 缓存声音样本记录
func SetVoiceSample(ctx context.Context, sample *model.VoiceSample) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal voice sample: %w", err)
	}

	if err := RedisClient.Set(ctx, voiceKey(sample.ID), data, voiceSampleTTL).Err(); err != nil {
		logger.Warn("声音样本缓存写入失败",
			logger.String("voiceId", sample.ID),
			logger.ErrorField(err))
		return err
	}
	return nil
}

// GetVoiceSample 读取声音样本缓存，未命中返回 (nil, nil)
func GetVoiceSample(ctx context.Context, voiceID string) (*model.VoiceSample, error) {
	if RedisClient == nil {
		return nil, nil
	}

	data, err := RedisClient.Get(ctx, voiceKey(voiceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var sample model.VoiceSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voice sample: %w", err)
	}
	return &sample, nil
}

// DeleteVoiceSample 状态变更或删除后失效缓存
func DeleteVoiceSample(ctx context.Context, voiceID string) error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Del(ctx, voiceKey(voiceID)).Err()
}
