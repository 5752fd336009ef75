/*
包 server 管理 OpenFlow HTTP 服务器的生命周期。

Manager 的状态只前进不后退：idle → listening → closed。Run 以 errgroup
同时运行 Serve 与上下文监听；ctx 取消后在 ShutdownTimeout 内排空连接，
超时则强制断开仍在处理的请求。
*/
package server
