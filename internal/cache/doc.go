/*
包 cache 提供基于 Redis 的键值缓存，用于缓存智能体工具的外部调用结果
（例如 tavily_search 的搜索结果）。

Manager 的 Get/Set 签名与 tools.ResultCache 一致，可直接注入工具目录。
未命中时 Get 返回 ErrCacheMiss；工具侧把任何 Get 错误都视为未命中。
*/
package cache
