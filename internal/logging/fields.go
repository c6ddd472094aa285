package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 描述一次缓存条目操作，item 为正文文件名（不含扩展名）。
func CacheFields(action, url, item string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"url":    url,
		"item":   item,
	}
}

// FetchFields 提供上游请求日志所需的 url/状态码字段。
func FetchFields(url string, status int) logrus.Fields {
	fields := logrus.Fields{
		"action": "fetch",
		"url":    url,
	}
	if status > 0 {
		fields["status"] = status
	}
	return fields
}
