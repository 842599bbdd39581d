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

// 任务快照缓存，轮询接口优先读取这里，未命中再回源数据库。
// 快照在任务写库之后更新，读到的永远是完整记录。

const taskSnapshotTTL = 30 * time.Minute

// taskKey 根据任务ID生成Redis键
func taskKey(taskID string) string {
	return fmt.Sprintf("task:%s", taskID)
}

// SetTaskSnapshot 写入任务快照
func SetTaskSnapshot(ctx context.Context, rec *model.TaskRecord) error {
	if RedisClient == nil {
		return nil // 缓存不可用时直接回源
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal task snapshot: %w", err)
	}

	if err := RedisClient.Set(ctx, taskKey(rec.TaskID), data, taskSnapshotTTL).Err(); err != nil {
		logger.Warn("设置任务快照缓存失败",
			logger.String("taskId", rec.TaskID),
			logger.ErrorField(err))
		return err
	}
	return nil
}

// GetTaskSnapshot 读取任务快照，缓存未命中时返回 (nil, nil)
func GetTaskSnapshot(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	if RedisClient == nil {
		return nil, nil
	}

	data, err := RedisClient.Get(ctx, taskKey(taskID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logger.Warn("读取任务快照缓存失败",
			logger.String("taskId", taskID),
			logger.ErrorField(err))
		return nil, err
	}

	var rec model.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task snapshot: %w", err)
	}
	return &rec, nil
}

// DeleteTaskSnapshot 删除任务快照
func DeleteTaskSnapshot(ctx context.Context, taskID string) error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Del(ctx, taskKey(taskID)).Err()
}
